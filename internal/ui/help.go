package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// HelpOverlay lists the panel's keyboard shortcuts in a centered modal.
type HelpOverlay struct {
	visible bool
	width   int
	height  int
}

func NewHelpOverlay() *HelpOverlay {
	return &HelpOverlay{}
}

func (h *HelpOverlay) Show() {
	h.visible = true
}

func (h *HelpOverlay) Hide() {
	h.visible = false
}

func (h *HelpOverlay) IsVisible() bool {
	return h.visible
}

func (h *HelpOverlay) SetSize(width, height int) {
	h.width = width
	h.height = height
}

// Update closes the overlay on any key press.
func (h *HelpOverlay) Update(msg tea.Msg) *HelpOverlay {
	if !h.visible {
		return h
	}
	if _, ok := msg.(tea.KeyMsg); ok {
		h.Hide()
	}
	return h
}

var helpSections = []struct {
	title string
	items [][2]string
}{
	{
		title: "NAVIGATION",
		items: [][2]string{
			{"j / down", "move down"},
			{"k / up", "move up"},
			{"g / G", "jump to top / bottom"},
			{"enter", "focus pane (marks read)"},
		},
	},
	{
		title: "NOTIFICATIONS",
		items: [][2]string{
			{"r", "mark selected read"},
			{"R", "mark all read"},
			{"d", "delete selected / group"},
			{"y", "copy body to clipboard"},
		},
	},
	{
		title: "TOASTS",
		items: [][2]string{
			{"o", "open toast (focus its pane)"},
			{"x", "dismiss toast"},
		},
	},
	{
		title: "MUTE & FILTER",
		items: [][2]string{
			{"m", "toggle mute for selected repo"},
			{"M", "toggle global mute"},
			{"/", "fuzzy filter"},
			{"esc", "clear filter / close overlay"},
		},
	},
	{
		title: "OTHER",
		items: [][2]string{
			{"ctrl+r", "refresh now"},
			{"q", "quit"},
			{"?", "this help"},
		},
	},
}

// View renders the shortcut list centered on screen.
func (h *HelpOverlay) View() string {
	if !h.visible {
		return ""
	}

	themeMu.RLock()
	t := currentTheme
	themeMu.RUnlock()

	sectionStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Blue).Width(12)
	descStyle := lipgloss.NewStyle().Foreground(t.Foreground)
	hintStyle := lipgloss.NewStyle().Foreground(t.Dim).Italic(true)

	var b strings.Builder
	b.WriteString(overlayTitleStyle.Render("KEYBOARD SHORTCUTS"))
	b.WriteString("\n\n")
	for i, section := range helpSections {
		b.WriteString(sectionStyle.Render(section.title))
		b.WriteString("\n")
		for _, item := range section.items {
			b.WriteString("  " + keyStyle.Render(item[0]) + descStyle.Render(item[1]) + "\n")
		}
		if i < len(helpSections)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("press any key to close"))

	box := overlayBoxStyle.Render(b.String())
	return lipgloss.Place(h.width, h.height, lipgloss.Center, lipgloss.Center, box)
}
