package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/shuntaka9576/agentoast/internal/toast"
)

const (
	toastMaxWidth = 56
	toastMinWidth = 24
)

// renderToast draws the active toast as a bordered banner. Returns ""
// when nothing is showing so the caller can skip the overlay line.
func renderToast(snap toast.Snapshot, screenWidth int, now time.Time) string {
	if snap.State == toast.StateEmpty || snap.Current == nil {
		return ""
	}
	n := snap.Current

	boxWidth := toastMaxWidth
	if screenWidth-4 < boxWidth {
		boxWidth = screenWidth - 4
	}
	if boxWidth < toastMinWidth {
		boxWidth = toastMinWidth
	}
	inner := boxWidth - 4

	title := n.Badge
	if title == "" {
		title = "Notification"
	}
	repo := repoName(n.Repo)
	body := runewidth.Truncate(collapseSpace(n.Body), inner, "…")

	meta := relativeTime(n.CreatedAt, now)
	if snap.Total > 1 {
		meta += fmt.Sprintf("  %d/%d", snap.Index+1, snap.Total)
	}
	meta += "  o open · x dismiss"
	meta = runewidth.Truncate(meta, inner, "…")

	var content string
	if snap.State == toast.StateFadingOut {
		head := runewidth.Truncate(title+" "+repo, inner, "…")
		content = toastFadeStyle.Render(head) + "\n" +
			toastFadeStyle.Render(body) + "\n" +
			toastFadeStyle.Render(meta)
	} else {
		head := BadgeStyle(n.BadgeColor).Render(title)
		if repo != "" {
			room := inner - runewidth.StringWidth(title) - 1
			if room > 0 {
				head += " " + toastMetaStyle.Render(runewidth.Truncate(repo, room, "…"))
			}
		}
		content = head + "\n" +
			toastBodyStyle.Render(body) + "\n" +
			toastMetaStyle.Render(meta)
	}

	box := toastBoxStyle.Width(boxWidth).Render(content)
	return lipgloss.PlaceHorizontal(screenWidth, lipgloss.Right, box)
}

// collapseSpace flattens newlines and runs of whitespace so a multi-line
// body fits the single banner line.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// repoName shortens a repo root path to its base name for display.
func repoName(repo string) string {
	if repo == "" {
		return ""
	}
	repo = strings.TrimRight(repo, "/")
	if i := strings.LastIndexByte(repo, '/'); i >= 0 {
		return repo[i+1:]
	}
	return repo
}

// relativeTime renders a compact age such as "now", "3m", "2h", "5d".
func relativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < 10*time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
