package ui

import (
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/shuntaka9576/agentoast/internal/agent"
	"github.com/shuntaka9576/agentoast/internal/store"
)

// Theme holds the panel color palette. Two palettes ship built in; which one
// is active is decided at startup from config and can be swapped at runtime
// when the OS appearance changes.
type Theme struct {
	Name string

	Background lipgloss.Color
	Foreground lipgloss.Color
	Dim        lipgloss.Color
	Accent     lipgloss.Color
	Border     lipgloss.Color
	Selection  lipgloss.Color

	Green  lipgloss.Color
	Yellow lipgloss.Color
	Red    lipgloss.Color
	Blue   lipgloss.Color
	Gray   lipgloss.Color
}

// DarkTheme is a Tokyo Night inspired dark palette.
func DarkTheme() Theme {
	return Theme{
		Name:       "dark",
		Background: lipgloss.Color("#1a1b26"),
		Foreground: lipgloss.Color("#c0caf5"),
		Dim:        lipgloss.Color("#565f89"),
		Accent:     lipgloss.Color("#7aa2f7"),
		Border:     lipgloss.Color("#3b4261"),
		Selection:  lipgloss.Color("#283457"),
		Green:      lipgloss.Color("#9ece6a"),
		Yellow:     lipgloss.Color("#e0af68"),
		Red:        lipgloss.Color("#f7768e"),
		Blue:       lipgloss.Color("#7aa2f7"),
		Gray:       lipgloss.Color("#565f89"),
	}
}

// LightTheme is the Tokyo Night day variant.
func LightTheme() Theme {
	return Theme{
		Name:       "light",
		Background: lipgloss.Color("#e1e2e7"),
		Foreground: lipgloss.Color("#3760bf"),
		Dim:        lipgloss.Color("#848cb5"),
		Accent:     lipgloss.Color("#2e7de9"),
		Border:     lipgloss.Color("#a8aecb"),
		Selection:  lipgloss.Color("#c4c8da"),
		Green:      lipgloss.Color("#587539"),
		Yellow:     lipgloss.Color("#8c6c3e"),
		Red:        lipgloss.Color("#f52a65"),
		Blue:       lipgloss.Color("#2e7de9"),
		Gray:       lipgloss.Color("#848cb5"),
	}
}

var (
	themeMu      sync.RWMutex
	currentTheme Theme
)

// InitTheme activates the named theme ("dark" or "light") and rebuilds every
// package-level style. Safe to call while the panel is running.
func InitTheme(name string) {
	themeMu.Lock()
	defer themeMu.Unlock()
	switch name {
	case "light":
		currentTheme = LightTheme()
	default:
		currentTheme = DarkTheme()
	}
	initStyles()
}

// CurrentThemeName reports which palette is active.
func CurrentThemeName() string {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme.Name
}

var (
	titleStyle       lipgloss.Style
	unreadCountStyle lipgloss.Style
	mutedTagStyle    lipgloss.Style

	groupHeaderStyle  lipgloss.Style
	groupCountStyle   lipgloss.Style
	rowStyle          lipgloss.Style
	selectedRowStyle  lipgloss.Style
	dimStyle          lipgloss.Style
	paneLocationStyle lipgloss.Style
	branchStyle       lipgloss.Style
	unreadDotStyle    lipgloss.Style

	statusRunningStyle lipgloss.Style
	statusWaitingStyle lipgloss.Style
	statusIdleStyle    lipgloss.Style

	badgeGreenStyle lipgloss.Style
	badgeBlueStyle  lipgloss.Style
	badgeRedStyle   lipgloss.Style
	badgeGrayStyle  lipgloss.Style

	footerStyle    lipgloss.Style
	footerKeyStyle lipgloss.Style
	noteStyle      lipgloss.Style
	errorStyle     lipgloss.Style

	filterPromptStyle lipgloss.Style
	filterMatchStyle  lipgloss.Style

	toastBoxStyle   lipgloss.Style
	toastTitleStyle lipgloss.Style
	toastBodyStyle  lipgloss.Style
	toastMetaStyle  lipgloss.Style
	toastFadeStyle  lipgloss.Style

	overlayBoxStyle   lipgloss.Style
	overlayTitleStyle lipgloss.Style
)

func initStyles() {
	t := currentTheme

	titleStyle = lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	unreadCountStyle = lipgloss.NewStyle().Foreground(t.Yellow).Bold(true)
	mutedTagStyle = lipgloss.NewStyle().Foreground(t.Red)

	groupHeaderStyle = lipgloss.NewStyle().Foreground(t.Foreground).Bold(true)
	groupCountStyle = lipgloss.NewStyle().Foreground(t.Dim)
	rowStyle = lipgloss.NewStyle().Foreground(t.Foreground)
	selectedRowStyle = lipgloss.NewStyle().Foreground(t.Foreground).Background(t.Selection)
	dimStyle = lipgloss.NewStyle().Foreground(t.Dim)
	paneLocationStyle = lipgloss.NewStyle().Foreground(t.Gray)
	branchStyle = lipgloss.NewStyle().Foreground(t.Accent)
	unreadDotStyle = lipgloss.NewStyle().Foreground(t.Yellow).Bold(true)

	statusRunningStyle = lipgloss.NewStyle().Foreground(t.Green)
	statusWaitingStyle = lipgloss.NewStyle().Foreground(t.Yellow)
	statusIdleStyle = lipgloss.NewStyle().Foreground(t.Dim)

	badgeGreenStyle = lipgloss.NewStyle().Foreground(t.Green).Bold(true)
	badgeBlueStyle = lipgloss.NewStyle().Foreground(t.Blue).Bold(true)
	badgeRedStyle = lipgloss.NewStyle().Foreground(t.Red).Bold(true)
	badgeGrayStyle = lipgloss.NewStyle().Foreground(t.Gray).Bold(true)

	footerStyle = lipgloss.NewStyle().Foreground(t.Dim)
	footerKeyStyle = lipgloss.NewStyle().Foreground(t.Accent)
	noteStyle = lipgloss.NewStyle().Foreground(t.Green)
	errorStyle = lipgloss.NewStyle().Foreground(t.Red)

	filterPromptStyle = lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	filterMatchStyle = lipgloss.NewStyle().Foreground(t.Yellow)

	toastBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Accent).
		Padding(0, 1)
	toastTitleStyle = lipgloss.NewStyle().Foreground(t.Foreground).Bold(true)
	toastBodyStyle = lipgloss.NewStyle().Foreground(t.Foreground)
	toastMetaStyle = lipgloss.NewStyle().Foreground(t.Dim)
	toastFadeStyle = lipgloss.NewStyle().Foreground(t.Dim)

	overlayBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 2)
	overlayTitleStyle = lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
}

func init() {
	InitTheme("dark")
}

// StatusIndicator renders the one-glyph activity marker for a pane.
func StatusIndicator(res agent.Result) string {
	themeMu.RLock()
	defer themeMu.RUnlock()
	switch res.Status {
	case agent.StatusRunning:
		return statusRunningStyle.Render("●")
	case agent.StatusWaiting:
		return statusWaitingStyle.Render("◐")
	case agent.StatusIdle:
		return statusIdleStyle.Render("○")
	default:
		return dimStyle.Render("·")
	}
}

// AgentIcon returns the short glyph shown next to a pane's agent name.
func AgentIcon(t agent.Type) string {
	switch t {
	case agent.TypeClaude:
		return "✳"
	case agent.TypeCodex:
		return "◆"
	case agent.TypeOpenCode:
		return "▣"
	default:
		return " "
	}
}

// BadgeStyle maps a stored badge color onto its lipgloss style.
func BadgeStyle(color string) lipgloss.Style {
	themeMu.RLock()
	defer themeMu.RUnlock()
	switch color {
	case store.ColorGreen:
		return badgeGreenStyle
	case store.ColorRed:
		return badgeRedStyle
	case store.ColorGray:
		return badgeGrayStyle
	default:
		return badgeBlueStyle
	}
}

// MenuKey formats one "key action" pair for the footer menu.
func MenuKey(key, desc string) string {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return footerKeyStyle.Render(key) + " " + footerStyle.Render(desc)
}
