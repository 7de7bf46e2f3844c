// Package agent classifies tmux panes as AI coding-agent sessions and
// infers each agent's activity state from captured screen text.
package agent

// Type identifies a recognized agent CLI.
type Type string

const (
	TypeClaude   Type = "claude"
	TypeCodex    Type = "codex"
	TypeOpenCode Type = "opencode"

	// TypeNone marks a pane with no recognized agent process.
	TypeNone Type = ""
)

// KnownTypes lists every agent the classifier recognizes.
func KnownTypes() []Type {
	return []Type{TypeClaude, TypeCodex, TypeOpenCode}
}

// Status is the detected activity state of an agent pane.
type Status string

const (
	StatusRunning Status = "running"
	StatusIdle    Status = "idle"
	StatusWaiting Status = "waiting"

	// StatusNone is the null status carried by panes without an agent.
	StatusNone Status = ""
)

// Result is the detector output for one snapshot.
type Result struct {
	Status Status

	// WaitingReason is non-empty iff Status is StatusWaiting.
	WaitingReason string
}

// ReasonRespond is the single waiting label surfaced to consumers. Rule
// tables may carry finer-grained labels (approve, select, question) but the
// detector collapses them all into this one canonical reason.
const ReasonRespond = "respond"
