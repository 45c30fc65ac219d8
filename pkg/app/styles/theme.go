package styles

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	Primary    = lipgloss.Color("#FF6B9D")
	Secondary  = lipgloss.Color("#C792EA")
	Success    = lipgloss.Color("#C3E88D")
	Error      = lipgloss.Color("#F07178")
	Info       = lipgloss.Color("#82AAFF")
	Muted      = lipgloss.Color("#546E7A")
	Foreground = lipgloss.Color("#EEFFFF")

	barBackground = lipgloss.Color("#37474F")
)

// Text
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Italic(true)

	TextStyle  = lipgloss.NewStyle().Foreground(Foreground)
	MutedStyle = lipgloss.NewStyle().Foreground(Muted)

	// Help line under every screen
	HelpStyle    = lipgloss.NewStyle().Foreground(Muted).Italic(true)
	HelpKeyStyle = lipgloss.NewStyle().Foreground(Secondary)
)

// Library and unit lists. The focused card gets a heavier border.
var (
	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Secondary).
			Padding(1, 2).
			MarginBottom(1)

	ActiveCardStyle = CardStyle.
			Border(lipgloss.ThickBorder()).
			BorderForeground(Primary)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1)
)

// Reader
var (
	PageStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Secondary).
			Padding(1, 3)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(Foreground).
			Background(barBackground).
			Padding(0, 1)

	ProgressBarStyle   = lipgloss.NewStyle().Foreground(Primary)
	ProgressEmptyStyle = lipgloss.NewStyle().Foreground(Muted)

	StatusLoading = lipgloss.NewStyle().Foreground(Info).Bold(true)
	StatusReady   = lipgloss.NewStyle().Foreground(Success).Bold(true)
	StatusError   = lipgloss.NewStyle().Foreground(Error).Bold(true)
)

// Tabs and search input
var (
	ActiveTabStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Background(barBackground).
			Padding(0, 2).
			Bold(true)

	InactiveTabStyle = lipgloss.NewStyle().
				Foreground(Muted).
				Padding(0, 2)

	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Secondary).
			Padding(0, 1)

	FocusedInputStyle = InputStyle.BorderForeground(Primary)
)

// StatusStyle picks the style for a page load status
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "loading":
		return StatusLoading
	case "ready":
		return StatusReady
	case "error":
		return StatusError
	default:
		return MutedStyle
	}
}
