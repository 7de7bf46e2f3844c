package store

import (
	"time"
)

// Badge color names accepted by the store. Unknown values normalize to gray.
const (
	ColorGreen = "green"
	ColorBlue  = "blue"
	ColorRed   = "red"
	ColorGray  = "gray"
)

// NormalizeColor maps arbitrary input to one of the accepted badge colors.
func NormalizeColor(c string) string {
	switch c {
	case ColorGreen, ColorBlue, ColorRed, ColorGray:
		return c
	default:
		return ColorGray
	}
}

// Notification is one stored notification row. Durable until explicitly
// deleted. At most one row exists per non-empty TmuxPane.
type Notification struct {
	ID               int64             `json:"id"`
	Badge            string            `json:"badge"`
	Body             string            `json:"body"`
	BadgeColor       string            `json:"badge_color"`
	Icon             string            `json:"icon,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Repo             string            `json:"repo,omitempty"`
	TmuxPane         string            `json:"tmux_pane,omitempty"`
	TerminalBundleID string            `json:"terminal_bundle_id,omitempty"`
	ForceFocus       bool              `json:"force_focus"`
	IsRead           bool              `json:"is_read"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Input carries the caller-supplied fields of a notification; the store
// assigns ID and CreatedAt on insert.
type Input struct {
	Badge            string
	Body             string
	BadgeColor       string
	Icon             string
	Metadata         map[string]string
	Repo             string
	TmuxPane         string
	TerminalBundleID string
	ForceFocus       bool
}

// MuteState holds delivery suppression flags. Muting suppresses toast
// delivery only; stored rows are never deleted by a mute.
type MuteState struct {
	GlobalMuted bool            `json:"global_muted"`
	MutedRepos  map[string]bool `json:"muted_repos"`
}

// NewMuteState returns an empty, unmuted state.
func NewMuteState() MuteState {
	return MuteState{MutedRepos: map[string]bool{}}
}

// Muted reports whether delivery for the given repo is suppressed.
func (m MuteState) Muted(repo string) bool {
	if m.GlobalMuted {
		return true
	}
	return repo != "" && m.MutedRepos[repo]
}
