package agent

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ProcessSnapshot is a point-in-time view of the system process table, built
// once per poll cycle so classifying N panes costs one ps invocation.
type ProcessSnapshot struct {
	children map[int][]int
	comm     map[int]string
}

// TakeProcessSnapshot reads the process table via ps. The portable pid,ppid
// and comm columns are available on both Linux and macOS.
func TakeProcessSnapshot(ctx context.Context) (*ProcessSnapshot, error) {
	out, err := exec.CommandContext(ctx, "ps", "-eo", "pid=,ppid=,comm=").Output()
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}
	return ParseProcessTable(string(out)), nil
}

// ParseProcessTable parses ps output with pid, ppid, and comm columns.
// Malformed rows are dropped.
func ParseProcessTable(out string) *ProcessSnapshot {
	s := &ProcessSnapshot{
		children: make(map[int][]int),
		comm:     make(map[int]string),
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		ppid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		// comm may itself contain spaces ("login shell" variants); rejoin.
		s.comm[pid] = strings.Join(fields[2:], " ")
		s.children[ppid] = append(s.children[ppid], pid)
	}
	return s
}

// AgentTypeFor walks the process tree rooted at a pane's shell PID and
// returns the first recognized agent binary found, or TypeNone. The walk is
// depth-first so an agent spawned directly by the shell wins over one nested
// inside a subshell further down.
func (s *ProcessSnapshot) AgentTypeFor(panePID int) Type {
	if s == nil {
		return TypeNone
	}
	seen := make(map[int]bool)
	stack := []int{panePID}
	for len(stack) > 0 {
		pid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[pid] {
			continue
		}
		seen[pid] = true
		if t := classifyComm(s.comm[pid]); t != TypeNone {
			return t
		}
		stack = append(stack, s.children[pid]...)
	}
	return TypeNone
}

// classifyComm maps an executable name to an agent type. ps truncates comm
// on Linux, so prefix matching covers versioned install names.
func classifyComm(comm string) Type {
	base := strings.ToLower(filepath.Base(strings.TrimSpace(comm)))
	if base == "" || base == "." {
		return TypeNone
	}
	switch {
	case strings.HasPrefix(base, "opencode"):
		return TypeOpenCode
	case strings.HasPrefix(base, "claude"):
		return TypeClaude
	case strings.HasPrefix(base, "codex"):
		return TypeCodex
	default:
		return TypeNone
	}
}
