package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by the chat view
type Styles struct {
	Welcome      lipgloss.Style
	WelcomeIcon  lipgloss.Style
	Badge        lipgloss.Style
	Action       lipgloss.Style
	ActionActive lipgloss.Style
	User         lipgloss.Style
	Assistant    lipgloss.Style
	Failed       lipgloss.Style
	Timestamp    lipgloss.Style
	Help         lipgloss.Style
	Spinner      lipgloss.Style
}

// DefaultStyles returns the dark palette of the mobile client
func DefaultStyles() Styles {
	return Styles{
		Welcome:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#CBDDE9")),
		WelcomeIcon: lipgloss.NewStyle().Foreground(lipgloss.Color("#2872A1")),
		Badge: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#2C2C2E")).
			Padding(0, 2),
		Action: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3A3A3C")).
			Padding(0, 2),
		ActionActive: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2872A1")).
			Padding(0, 2),
		User: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#2872A1")).
			Padding(0, 1),
		Assistant: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E5EA")).
			Padding(0, 1),
		Failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Padding(0, 1),
		Timestamp: lipgloss.NewStyle().Foreground(lipgloss.Color("#8E8E93")),
		Help:      lipgloss.NewStyle().Foreground(lipgloss.Color("#8E8E93")),
		Spinner:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")),
	}
}
