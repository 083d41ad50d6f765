package render

import "github.com/charmbracelet/lipgloss"

var (
	// PrimaryColor matches the dashboard header gradient.
	PrimaryColor = lipgloss.Color("#667EEA")
	// SubtleColor is used for secondary text.
	SubtleColor = lipgloss.Color("#666666")

	highColor     = lipgloss.Color("#F44336")
	moderateColor = lipgloss.Color("#FFA726")
	lowColor      = lipgloss.Color("#28A745")
)

// Styles holds the terminal report styles.
type Styles struct {
	Title    lipgloss.Style
	Section  lipgloss.Style
	Subtle   lipgloss.Style
	Bold     lipgloss.Style
	Metric   lipgloss.Style
	Box      lipgloss.Style
	SAR      lipgloss.Style
	NoSAR    lipgloss.Style
	High     lipgloss.Style
	Moderate lipgloss.Style
	Low      lipgloss.Style
}

// NewStyles returns the default terminal styles.
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor),
		Section: lipgloss.NewStyle().
			Bold(true).
			Underline(true),
		Subtle: lipgloss.NewStyle().
			Foreground(SubtleColor),
		Bold: lipgloss.NewStyle().
			Bold(true),
		Metric: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(0, 2).
			Align(lipgloss.Center),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SubtleColor).
			Padding(0, 1),
		SAR: lipgloss.NewStyle().
			Bold(true).
			Foreground(highColor),
		NoSAR: lipgloss.NewStyle().
			Foreground(lowColor),
		High: lipgloss.NewStyle().
			Bold(true).
			Foreground(highColor),
		Moderate: lipgloss.NewStyle().
			Bold(true).
			Foreground(moderateColor),
		Low: lipgloss.NewStyle().
			Foreground(lowColor),
	}
}

// typologyStyle colors text with the typology's reference color.
func typologyStyle(color string) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color))
}
