// Package tmux wraps the tmux CLI for pane enumeration, screen capture, and
// focus control. Everything goes through tmux subcommands; no pane tty is
// ever opened directly.
package tmux

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// commandTimeout bounds every tmux invocation. A wedged tmux server must
// stall a poll cycle, not the whole daemon.
const commandTimeout = 3 * time.Second

// ErrNoServer reports that no tmux server is running. Callers treat it as
// an empty pane list rather than a failure.
var ErrNoServer = errors.New("tmux server not running")

// ErrTimeout reports that a tmux command exceeded commandTimeout.
var ErrTimeout = errors.New("tmux command timed out")

// fieldSep separates format fields in list output. Rows where a free-text
// field happens to contain a triple pipe misparse and are dropped; see
// paneFormat for the field ordering that makes the drop detectable.
const fieldSep = "|||"

// runTmux executes one tmux command and returns trimmed stdout. Swappable
// for tests.
var runTmux = func(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "tmux", args...).Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("tmux %s: %w", args[0], ErrTimeout)
		}
		if isNoServer(err) {
			return "", ErrNoServer
		}
		return "", fmt.Errorf("tmux %s: %w", args[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}

// isNoServer recognizes the errors tmux emits when there is no server or no
// session to talk to.
func isNoServer(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := string(exitErr.Stderr)
		return strings.Contains(msg, "no server running") ||
			strings.Contains(msg, "error connecting to") ||
			strings.Contains(msg, "no sessions")
	}
	return false
}

// Pane is one row of tmux list-panes output.
type Pane struct {
	// ID is the unique %-prefixed pane id, stable for the pane's lifetime.
	ID string

	Session     string
	WindowIndex int
	WindowName  string
	PaneIndex   int

	// PID is the pane's root shell process.
	PID int

	Command string
	Path    string
	Title   string

	PaneActive      bool
	WindowActive    bool
	SessionAttached bool
}

// Visible reports whether the pane is on screen in front of an attached
// client right now.
func (p Pane) Visible() bool {
	return p.PaneActive && p.WindowActive && p.SessionAttached
}

// paneFormat puts the title last so SplitN absorbs separators inside it.
// The other free-text fields precede the numeric columns: a separator in a
// session name, window name, or path shifts the numbers, fails the parse,
// and drops the row instead of silently remapping fields.
const paneFormat = "#{pane_id}" + fieldSep +
	"#{session_name}" + fieldSep +
	"#{window_name}" + fieldSep +
	"#{pane_current_path}" + fieldSep +
	"#{pane_current_command}" + fieldSep +
	"#{window_index}" + fieldSep +
	"#{pane_index}" + fieldSep +
	"#{pane_pid}" + fieldSep +
	"#{pane_active}" + fieldSep +
	"#{window_active}" + fieldSep +
	"#{session_attached}" + fieldSep +
	"#{pane_title}"

const paneFieldCount = 12

// ListPanes enumerates every pane across all sessions. A missing server
// yields an empty list.
func ListPanes(ctx context.Context) ([]Pane, error) {
	out, err := runTmux(ctx, "list-panes", "-a", "-F", paneFormat)
	if err != nil {
		if errors.Is(err, ErrNoServer) {
			return nil, nil
		}
		return nil, err
	}
	return parsePanes(out), nil
}

// parsePanes parses list-panes output, dropping malformed rows.
func parsePanes(out string) []Pane {
	if out == "" {
		return nil
	}
	var panes []Pane
	for _, line := range strings.Split(out, "\n") {
		if p, ok := parsePaneLine(line); ok {
			panes = append(panes, p)
		}
	}
	return panes
}

func parsePaneLine(line string) (Pane, bool) {
	fields := strings.SplitN(line, fieldSep, paneFieldCount)
	if len(fields) != paneFieldCount || !strings.HasPrefix(fields[0], "%") {
		return Pane{}, false
	}
	windowIdx, err := strconv.Atoi(fields[5])
	if err != nil {
		return Pane{}, false
	}
	paneIdx, err := strconv.Atoi(fields[6])
	if err != nil {
		return Pane{}, false
	}
	pid, err := strconv.Atoi(fields[7])
	if err != nil {
		return Pane{}, false
	}
	return Pane{
		ID:              fields[0],
		Session:         fields[1],
		WindowName:      fields[2],
		Path:            fields[3],
		Command:         fields[4],
		WindowIndex:     windowIdx,
		PaneIndex:       paneIdx,
		PID:             pid,
		PaneActive:      fields[8] == "1",
		WindowActive:    fields[9] == "1",
		SessionAttached: fields[10] == "1",
		Title:           fields[11],
	}, true
}

// PaneVisible re-checks a single pane's visibility at notification time.
// Pane ids from hooks may be minutes old, so this asks tmux instead of
// trusting the last enumeration.
func PaneVisible(ctx context.Context, paneID string) (bool, error) {
	out, err := runTmux(ctx, "display-message", "-p", "-t", paneID,
		"#{pane_active} #{window_active} #{session_attached}")
	if err != nil {
		if errors.Is(err, ErrNoServer) {
			return false, nil
		}
		return false, err
	}
	return out == "1 1 1", nil
}

// FocusPane switches the attached client to a pane's session and brings the
// pane to the foreground.
func FocusPane(ctx context.Context, paneID string) error {
	out, err := runTmux(ctx, "display-message", "-p", "-t", paneID,
		"#{session_name}"+fieldSep+"#{window_index}")
	if err != nil {
		return err
	}
	fields := strings.SplitN(out, fieldSep, 2)
	if len(fields) != 2 {
		return fmt.Errorf("unexpected pane location %q", out)
	}
	session, window := fields[0], fields[1]

	if _, err := runTmux(ctx, "switch-client", "-t", session); err != nil {
		return err
	}
	if _, err := runTmux(ctx, "select-window", "-t", session+":"+window); err != nil {
		return err
	}
	_, err = runTmux(ctx, "select-pane", "-t", paneID)
	return err
}

// InTmux reports whether the current process runs inside a tmux client.
func InTmux() bool {
	return os.Getenv("TMUX") != ""
}

// CurrentPaneID returns the pane id tmux exports into hook subprocesses.
func CurrentPaneID() string {
	return os.Getenv("TMUX_PANE")
}

// IsAvailable checks that the tmux binary exists on PATH.
func IsAvailable() error {
	if _, err := exec.LookPath("tmux"); err != nil {
		return fmt.Errorf("tmux not found in PATH: %w", err)
	}
	return nil
}
