package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/CodeChoreography/dicomity/internal/adapters/tui/views"
	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

// Scanner is the part of a scan session the TUI drives
type Scanner interface {
	Scan(ctx context.Context, roots []string, progress ports.ProgressReporter) (*domain.ScanReport, error)
	Refresh(ctx context.Context, progress ports.ProgressReporter) (*domain.ScanReport, error)
	Registry() *domain.Registry
}

// ViewState represents the current view
type ViewState int

const (
	ViewScan ViewState = iota
	ViewBrowser
	ViewHelp
)

var (
	cancelKey = key.NewBinding(key.WithKeys("ctrl+c"))
	quitKey   = key.NewBinding(key.WithKeys("q"))
)

// scanDoneMsg carries the outcome of a scan or refresh
type scanDoneMsg struct {
	report *domain.ScanReport
	err    error
}

// App is the main TUI application model
type App struct {
	scanner Scanner
	roots   []string

	state   ViewState
	scan    *views.ScanModel
	browser *views.BrowserModel
	help    *views.HelpModel

	reporter *views.Reporter
	cancel   context.CancelFunc
	// Report is the outcome of the latest scan
	Report *domain.ScanReport

	width  int
	height int
}

// NewApp creates a TUI that scans roots on start
func NewApp(scanner Scanner, roots []string) *App {
	return &App{
		scanner: scanner,
		roots:   roots,
		state:   ViewScan,
		scan:    views.NewScanModel(roots),
		browser: views.NewBrowserModel(),
		help:    views.NewHelpModel(),
	}
}

// Init starts the first scan
func (a *App) Init() tea.Cmd {
	return a.startScan(func(ctx context.Context, r ports.ProgressReporter) (*domain.ScanReport, error) {
		return a.scanner.Scan(ctx, a.roots, r)
	})
}

func (a *App) startScan(run func(context.Context, ports.ProgressReporter) (*domain.ScanReport, error)) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.reporter = views.NewReporter()
	a.scan.Reset()
	a.state = ViewScan

	reporter := a.reporter
	return tea.Batch(
		func() tea.Msg {
			report, err := run(ctx, reporter)
			reporter.Finish()
			return scanDoneMsg{report: report, err: err}
		},
		reporter.Wait(),
	)
}

// Update handles messages for the application
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.scan.SetSize(msg.Width, msg.Height)
		a.browser.SetSize(msg.Width, msg.Height)
		a.help.SetSize(msg.Width, msg.Height)
		return a, nil

	case views.ProgressMsg:
		a.scan.Update(msg)
		return a, a.reporter.Wait()

	case scanDoneMsg:
		a.cancel()
		if msg.err != nil {
			a.scan.SetErr(msg.err)
			return a, nil
		}
		a.Report = msg.report
		a.browser.Load(a.scanner.Registry())
		a.browser.SetMessage(views.ReportSummary(msg.report), msg.report.Cancelled)
		a.state = ViewBrowser
		return a, nil

	case views.StartRefreshMsg:
		return a, a.startScan(a.scanner.Refresh)

	case views.SwitchToHelpMsg:
		a.state = ViewHelp
		return a, nil

	case views.SwitchToBrowserMsg:
		a.state = ViewBrowser
		return a, nil

	case tea.KeyMsg:
		if a.state == ViewScan {
			return a, a.scanKey(msg)
		}
	}

	var cmd tea.Cmd
	switch a.state {
	case ViewBrowser:
		_, cmd = a.browser.Update(msg)
	case ViewHelp:
		_, cmd = a.help.Update(msg)
	}
	return a, cmd
}

// scanKey handles keys while the progress view is up: ctrl+c cancels a
// running scan, and once a scan has failed q or ctrl+c quits.
func (a *App) scanKey(msg tea.KeyMsg) tea.Cmd {
	finished := a.reporter.Done()
	switch {
	case key.Matches(msg, cancelKey):
		if finished {
			return tea.Quit
		}
		a.cancel()
		a.scan.SetStopping()
	case key.Matches(msg, quitKey):
		if finished {
			return tea.Quit
		}
	}
	return nil
}

// View renders the current view
func (a *App) View() string {
	switch a.state {
	case ViewScan:
		return a.scan.View()
	case ViewHelp:
		return a.help.View()
	default:
		return a.browser.View()
	}
}
