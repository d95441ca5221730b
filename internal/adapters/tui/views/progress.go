package views

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/CodeChoreography/dicomity/internal/adapters/tui/styles"
	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

// ProgressMsg is a snapshot of a running scan
type ProgressMsg struct {
	Total   int
	Done    int
	Failed  int
	Current string
}

// Reporter turns scan callbacks into ProgressMsg snapshots. Bursts of
// callbacks coalesce into one pending message.
type Reporter struct {
	total   atomic.Int64
	done    atomic.Int64
	failed  atomic.Int64
	current atomic.Value

	signal   chan struct{}
	finished chan struct{}
	once     sync.Once
}

// Ensure Reporter implements ProgressReporter
var _ ports.ProgressReporter = (*Reporter)(nil)

// NewReporter creates a reporter for one scan
func NewReporter() *Reporter {
	return &Reporter{
		signal:   make(chan struct{}, 1),
		finished: make(chan struct{}),
	}
}

func (r *Reporter) TotalKnown(total int) {
	r.total.Store(int64(total))
	r.notify()
}

func (r *Reporter) FileStarted(path string) {
	r.current.Store(path)
	r.notify()
}

func (r *Reporter) FileCompleted(path string, outcome domain.FileOutcome, err error) {
	r.done.Add(1)
	if outcome == domain.OutcomeFailed {
		r.failed.Add(1)
	}
	r.notify()
}

func (r *Reporter) notify() {
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// Finish stops Wait from blocking
func (r *Reporter) Finish() {
	r.once.Do(func() { close(r.finished) })
}

// Done reports whether Finish has been called
func (r *Reporter) Done() bool {
	select {
	case <-r.finished:
		return true
	default:
		return false
	}
}

// Snapshot returns the current counts
func (r *Reporter) Snapshot() ProgressMsg {
	current, _ := r.current.Load().(string)
	return ProgressMsg{
		Total:   int(r.total.Load()),
		Done:    int(r.done.Load()),
		Failed:  int(r.failed.Load()),
		Current: current,
	}
}

// Wait returns a command delivering the next snapshot, or nil once the scan
// has finished
func (r *Reporter) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-r.signal:
			return r.Snapshot()
		case <-r.finished:
			return nil
		}
	}
}

// ScanModel shows a progress bar while files are read
type ScanModel struct {
	bar     progress.Model
	roots   []string
	state   ProgressMsg
	err     error
	width   int
	height  int
	stopped bool
}

// NewScanModel creates a progress view for a scan of roots
func NewScanModel(roots []string) *ScanModel {
	return &ScanModel{
		bar:   progress.New(progress.WithDefaultGradient()),
		roots: roots,
	}
}

// Init initializes the progress view
func (m *ScanModel) Init() tea.Cmd {
	return nil
}

// Reset prepares the view for another scan
func (m *ScanModel) Reset() {
	m.state = ProgressMsg{}
	m.err = nil
	m.stopped = false
}

// SetErr shows a fatal scan error
func (m *ScanModel) SetErr(err error) {
	m.err = err
}

// SetStopping marks the scan as being cancelled
func (m *ScanModel) SetStopping() {
	m.stopped = true
}

// Percent returns the completed fraction
func (m *ScanModel) Percent() float64 {
	if m.state.Total == 0 {
		return 0
	}
	return float64(m.state.Done) / float64(m.state.Total)
}

// Update handles messages for the progress view
func (m *ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
	case ProgressMsg:
		m.state = msg
	}
	return m, nil
}

// View renders the progress view
func (m *ScanModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("dicomity"))
	b.WriteString("\n")
	b.WriteString(styles.Subtitle.Render("Scanning " + strings.Join(m.roots, ", ")))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(RenderMessage(m.err.Error(), true))
		b.WriteString("\n\n")
		b.WriteString(styles.HelpDesc.Render("Press q to quit"))
		return styles.App.Render(b.String())
	}

	b.WriteString(m.bar.ViewAs(m.Percent()))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%d / %d files", m.state.Done, m.state.Total))
	if m.state.Failed > 0 {
		b.WriteString(styles.WarningMsg.Render(fmt.Sprintf("  %d unreadable", m.state.Failed)))
	}
	b.WriteString("\n")
	if m.state.Current != "" {
		b.WriteString(styles.MutedText.Render(filepath.Base(m.state.Current)))
	}
	b.WriteString("\n\n")
	if m.stopped {
		b.WriteString(styles.WarningMsg.Render("Stopping…"))
	} else {
		b.WriteString(styles.HelpDesc.Render("Ctrl+C stops the scan and shows what was read"))
	}

	return styles.App.Render(b.String())
}

// SetSize updates the view dimensions
func (m *ScanModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.bar.Width = max(20, min(width-8, 80))
}
