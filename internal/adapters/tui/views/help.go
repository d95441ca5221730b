package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/CodeChoreography/dicomity/internal/adapters/tui/styles"
)

// HelpKeyMap defines key bindings for the help view
type HelpKeyMap struct {
	Close key.Binding
}

var HelpKeys = HelpKeyMap{
	Close: key.NewBinding(
		key.WithKeys("esc", "q", "?"),
		key.WithHelp("esc/q/?", "close"),
	),
}

// HelpModel is the model for the help view
type HelpModel struct {
	width  int
	height int
}

// NewHelpModel creates a new help view model
func NewHelpModel() *HelpModel {
	return &HelpModel{}
}

// Init initializes the help view
func (m *HelpModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view
func (m *HelpModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, HelpKeys.Close) {
			return m, func() tea.Msg {
				return SwitchToBrowserMsg{}
			}
		}
	}

	return m, nil
}

// View renders the help view
func (m *HelpModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("dicomity help"))
	b.WriteString("\n\n")

	b.WriteString(styles.Label.Render("Navigation"))
	b.WriteString("\n")
	b.WriteString(helpLine("j / k / ↑ / ↓", "Move up/down"))
	b.WriteString(helpLine("h / ←", "Collapse / go to parent"))
	b.WriteString(helpLine("l / → / Enter", "Expand"))
	b.WriteString("\n")

	b.WriteString(styles.Label.Render("Actions"))
	b.WriteString("\n")
	b.WriteString(helpLine("c", "Copy the ordered paths of the selected series"))
	b.WriteString(helpLine("r", "Rescan changed files"))
	b.WriteString(helpLine("Ctrl+C", "Stop a running scan"))
	b.WriteString("\n")

	b.WriteString(styles.Label.Render("Ordering"))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render("  spatial             slices sorted along the normal, uniform spacing"))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render("  spatial?            sorted along the normal, irregular spacing"))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render("  instance-number?    no usable geometry, sorted by instance number"))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render("  acquisition-number? sorted by acquisition number"))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render("  filename?           last resort, natural file name order"))
	b.WriteString("\n\n")

	b.WriteString(styles.HelpDesc.Render("Press "))
	b.WriteString(styles.HelpKey.Render("esc"))
	b.WriteString(styles.HelpDesc.Render(" or "))
	b.WriteString(styles.HelpKey.Render("?"))
	b.WriteString(styles.HelpDesc.Render(" to close"))

	return styles.App.Render(b.String())
}

func helpLine(key, desc string) string {
	return "  " + styles.HelpKey.Render(padRight(key, 20)) + styles.HelpDesc.Render(desc) + "\n"
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

// SetSize updates the view dimensions
func (m *HelpModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}
