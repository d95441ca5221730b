package views

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/CodeChoreography/dicomity/internal/adapters/tui/styles"
	"github.com/CodeChoreography/dicomity/internal/domain"
)

const (
	// detailPaths is how many ordered paths the detail pane lists
	detailPaths = 8
	// chromeRows is the height taken by everything but the tree
	chromeRows = 24
)

// BrowserKeyMap defines key bindings for the browser view
type BrowserKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	Enter   key.Binding
	Copy    key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

var BrowserKeys = BrowserKeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Left: key.NewBinding(
		key.WithKeys("h", "left"),
		key.WithHelp("h/←", "collapse"),
	),
	Right: key.NewBinding(
		key.WithKeys("l", "right"),
		key.WithHelp("l/→", "expand"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "toggle"),
	),
	Copy: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "copy paths"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// BrowserModel is the patient / study / series tree
type BrowserModel struct {
	roots      []*TreeNode
	flatNodes  []*TreeNode
	cursor     int
	offset     int
	width      int
	height     int
	message    string
	messageErr bool

	// copy writes text to the system clipboard
	copy func(string) error
}

// NewBrowserModel creates an empty browser
func NewBrowserModel() *BrowserModel {
	return &BrowserModel{copy: clipboard.WriteAll}
}

// Init initializes the browser
func (m *BrowserModel) Init() tea.Cmd {
	return nil
}

// Load replaces the tree with the contents of reg, keeping expanded nodes
// expanded and the cursor on the same node when it still exists
func (m *BrowserModel) Load(reg *domain.Registry) {
	expanded := make(map[string]bool)
	walkTree(m.roots, func(n *TreeNode) {
		if n.IsExpanded {
			expanded[n.nodeID()] = true
		}
	})
	var selected string
	if n := m.SelectedNode(); n != nil {
		selected = n.nodeID()
	}

	m.roots = BuildTree(reg)
	walkTree(m.roots, func(n *TreeNode) { n.IsExpanded = expanded[n.nodeID()] })

	m.refreshFlatNodes()
	for i, n := range m.flatNodes {
		if n.nodeID() == selected {
			m.cursor = i
			break
		}
	}
}

// SetMessage sets the status line
func (m *BrowserModel) SetMessage(msg string, isErr bool) {
	m.message = msg
	m.messageErr = isErr
}

type copiedMsg struct {
	count int
	err   error
}

// Update handles messages for the browser
func (m *BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.SetMessage(fmt.Sprintf("Copy failed: %v", msg.err), true)
		} else {
			m.SetMessage(fmt.Sprintf("Copied %d paths", msg.count), false)
		}
		return m, nil

	case tea.KeyMsg:
		m.message = ""

		switch {
		case key.Matches(msg, BrowserKeys.Quit):
			return m, tea.Quit

		case key.Matches(msg, BrowserKeys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case key.Matches(msg, BrowserKeys.Down):
			if m.cursor < len(m.flatNodes)-1 {
				m.cursor++
			}
			return m, nil

		case key.Matches(msg, BrowserKeys.Left):
			if node := m.SelectedNode(); node != nil {
				if node.IsExpanded {
					node.IsExpanded = false
					m.refreshFlatNodes()
				} else if node.Parent != nil {
					for i, n := range m.flatNodes {
						if n == node.Parent {
							m.cursor = i
							break
						}
					}
				}
			}
			return m, nil

		case key.Matches(msg, BrowserKeys.Right), key.Matches(msg, BrowserKeys.Enter):
			if node := m.SelectedNode(); node != nil && node.Kind != KindSeries {
				if !node.IsExpanded {
					node.IsExpanded = true
				} else if key.Matches(msg, BrowserKeys.Enter) {
					node.IsExpanded = false
				}
				m.refreshFlatNodes()
			}
			return m, nil

		case key.Matches(msg, BrowserKeys.Copy):
			if node := m.SelectedNode(); node != nil && node.Kind == KindSeries {
				return m, m.copyPaths(node.Series)
			}
			return m, nil

		case key.Matches(msg, BrowserKeys.Refresh):
			return m, func() tea.Msg { return StartRefreshMsg{} }

		case key.Matches(msg, BrowserKeys.Help):
			return m, func() tea.Msg { return SwitchToHelpMsg{} }
		}
	}

	return m, nil
}

func (m *BrowserModel) copyPaths(s domain.SeriesView) tea.Cmd {
	return func() tea.Msg {
		var paths []string
		for _, ref := range s.OrderedInstances() {
			paths = append(paths, ref.Path)
		}
		err := m.copy(strings.Join(paths, "\n"))
		return copiedMsg{count: len(paths), err: err}
	}
}

// SelectedNode returns the node under the cursor
func (m *BrowserModel) SelectedNode() *TreeNode {
	if m.cursor >= 0 && m.cursor < len(m.flatNodes) {
		return m.flatNodes[m.cursor]
	}
	return nil
}

// rows is how many tree lines fit on screen; zero height shows everything
func (m *BrowserModel) rows() int {
	if m.height == 0 {
		return len(m.flatNodes)
	}
	return max(m.height-chromeRows, 5)
}

// visibleRange scrolls the window so the cursor stays on screen
func (m *BrowserModel) visibleRange() (start, end int) {
	rows := m.rows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	} else if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
	m.offset = max(0, min(m.offset, len(m.flatNodes)-rows))
	return m.offset, min(m.offset+rows, len(m.flatNodes))
}

func (m *BrowserModel) refreshFlatNodes() {
	m.flatNodes = Flatten(m.roots)
	if m.cursor >= len(m.flatNodes) {
		m.cursor = len(m.flatNodes) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// View renders the browser
func (m *BrowserModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("dicomity"))
	b.WriteString("\n")
	b.WriteString(styles.Subtitle.Render("DICOM series browser"))
	b.WriteString("\n\n")

	if len(m.flatNodes) == 0 {
		b.WriteString(styles.MutedText.Render("No series found"))
		b.WriteString("\n")
	}
	start, end := m.visibleRange()
	if start > 0 {
		b.WriteString(styles.MutedText.Render(fmt.Sprintf("  ↑ %d more", start)))
		b.WriteString("\n")
	}
	for i := start; i < end; i++ {
		b.WriteString(m.renderNode(m.flatNodes[i], i == m.cursor))
		b.WriteString("\n")
	}
	if end < len(m.flatNodes) {
		b.WriteString(styles.MutedText.Render(fmt.Sprintf("  ↓ %d more", len(m.flatNodes)-end)))
		b.WriteString("\n")
	}

	if node := m.SelectedNode(); node != nil && node.Kind == KindSeries {
		b.WriteString("\n")
		b.WriteString(m.renderDetail(node.Series))
		b.WriteString("\n")
	}

	if m.message != "" {
		b.WriteString("\n")
		b.WriteString(RenderMessage(m.message, m.messageErr))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(RenderHelpLine(BrowserKeys.Up, BrowserKeys.Right, BrowserKeys.Copy,
		BrowserKeys.Refresh, BrowserKeys.Help, BrowserKeys.Quit))

	return styles.App.Render(b.String())
}

func (m *BrowserModel) renderNode(node *TreeNode, selected bool) string {
	indent := strings.Repeat("  ", node.Depth)

	var prefix string
	switch {
	case node.Kind == KindSeries:
		prefix = styles.TreeLeaf
	case node.IsExpanded:
		prefix = styles.TreeExpanded
	default:
		prefix = styles.TreeCollapsed
	}

	var style lipgloss.Style
	switch node.Kind {
	case KindPatient:
		style = styles.NodePatient
	case KindStudy:
		style = styles.NodeStudy
	default:
		style = styles.NodeSeries.Foreground(styles.ModalityColor(node.Series.Modality))
	}
	if selected {
		style = styles.NodeSelected
	}

	line := indent + styles.TreeBranch.Render(prefix) + style.Render(node.Label)
	if node.Kind == KindSeries {
		line += "  " + RenderMethod(node.Series.Method, node.Series.Confident)
	}
	return line
}

func (m *BrowserModel) renderDetail(s domain.SeriesView) string {
	var b strings.Builder
	b.WriteString(RenderLabelValue("Series UID", s.Key.SeriesUID))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("ID", s.ID))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Order", RenderMethod(s.Method, s.Confident)))
	if s.SliceSpacing > 0 {
		b.WriteString(fmt.Sprintf("  spacing %.3g mm", s.SliceSpacing))
	}
	b.WriteString("\n")
	for _, reason := range s.Fallback {
		b.WriteString(styles.WarningMsg.Render("  " + reason))
		b.WriteString("\n")
	}
	if s.Split != nil {
		attrs := make([]string, len(s.Split.Attributes))
		for i, a := range s.Split.Attributes {
			attrs[i] = string(a)
		}
		b.WriteString(styles.WarningMsg.Render(fmt.Sprintf("Split into %d groups by %s", s.Split.Siblings, strings.Join(attrs, ", "))))
		b.WriteString("\n")
	}
	if s.Duplicates > 0 {
		b.WriteString(styles.WarningMsg.Render(fmt.Sprintf("%d duplicate instances excluded", s.Duplicates)))
		b.WriteString("\n")
	}

	refs := s.OrderedInstances()
	for i, ref := range refs {
		if i == detailPaths {
			b.WriteString(styles.MutedText.Render(fmt.Sprintf("… %d more", len(refs)-detailPaths)))
			break
		}
		b.WriteString(styles.MutedText.Render(ref.Path))
		b.WriteString("\n")
	}
	return styles.Detail.Render(strings.TrimRight(b.String(), "\n"))
}

// SetSize updates the view dimensions
func (m *BrowserModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Messages for view switching
type StartRefreshMsg struct{}

type SwitchToHelpMsg struct{}

type SwitchToBrowserMsg struct{}
