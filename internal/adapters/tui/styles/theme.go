package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	Primary   = lipgloss.Color("#7C3AED") // Purple
	Secondary = lipgloss.Color("#10B981") // Green
	Muted     = lipgloss.Color("#6B7280") // Gray
	Warning   = lipgloss.Color("#F59E0B") // Amber
	Error     = lipgloss.Color("#EF4444") // Red
	White     = lipgloss.Color("#FFFFFF")

	// Modality colors
	ModalityCT = lipgloss.Color("#60A5FA") // Blue
	ModalityMR = lipgloss.Color("#EC4899") // Pink
	ModalityPT = lipgloss.Color("#F97316") // Orange
	ModalityUS = lipgloss.Color("#8B5CF6") // Violet

	// Base styles
	App = lipgloss.NewStyle().
		Padding(1, 2)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	// Tree node styles
	NodePatient = lipgloss.NewStyle().
			Bold(true)

	NodeStudy = lipgloss.NewStyle().
			Foreground(Secondary)

	NodeSeries = lipgloss.NewStyle()

	NodeSelected = lipgloss.NewStyle().
			Background(Primary).
			Foreground(White).
			Bold(true)

	// Ordering confidence
	Confident = lipgloss.NewStyle().
			Foreground(Secondary)

	Uncertain = lipgloss.NewStyle().
			Foreground(Warning)

	// Tree indicators
	TreeBranch    = lipgloss.NewStyle().Foreground(Muted)
	TreeExpanded  = "▼ "
	TreeCollapsed = "▶ "
	TreeLeaf      = "  "

	// Detail pane
	Detail = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Muted).
		Padding(0, 1)

	Label = lipgloss.NewStyle().
		Foreground(Secondary).
		Bold(true)

	// Help styles
	HelpKey = lipgloss.NewStyle().
		Foreground(Primary).
		Bold(true)

	HelpDesc = lipgloss.NewStyle().
			Foreground(Muted)

	HelpSeparator = lipgloss.NewStyle().
			Foreground(Muted).
			SetString(" • ")

	// Message styles
	Success = lipgloss.NewStyle().
		Foreground(Secondary).
		Bold(true)

	ErrorMsg = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarningMsg = lipgloss.NewStyle().
			Foreground(Warning)

	MutedText = lipgloss.NewStyle().
			Foreground(Muted)
)

// ModalityColor returns the color used for a modality code
func ModalityColor(modality string) lipgloss.Color {
	switch modality {
	case "CT":
		return ModalityCT
	case "MR":
		return ModalityMR
	case "PT", "NM":
		return ModalityPT
	case "US":
		return ModalityUS
	default:
		return White
	}
}
