package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeChoreography/dicomity/internal/adapters/tui/views"
	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

type fakeScanner struct {
	registry *domain.Registry
}

func (f *fakeScanner) Scan(ctx context.Context, roots []string, progress ports.ProgressReporter) (*domain.ScanReport, error) {
	return &domain.ScanReport{}, nil
}

func (f *fakeScanner) Refresh(ctx context.Context, progress ports.ProgressReporter) (*domain.ScanReport, error) {
	return &domain.ScanReport{}, nil
}

func (f *fakeScanner) Registry() *domain.Registry {
	return f.registry
}

func TestApp_ScanThenBrowse(t *testing.T) {
	a := NewApp(&fakeScanner{registry: domain.NewRegistry(domain.RegistryOptions{})}, []string{"/data"})
	require.NotNil(t, a.Init())
	assert.Equal(t, ViewScan, a.state)

	a.Update(scanDoneMsg{report: &domain.ScanReport{FilesProcessed: 2, Parsed: 2}})
	assert.Equal(t, ViewBrowser, a.state)
	assert.Contains(t, a.View(), "2 files, 2 parsed")

	a.Update(views.SwitchToHelpMsg{})
	assert.Equal(t, ViewHelp, a.state)
	a.Update(views.SwitchToBrowserMsg{})
	assert.Equal(t, ViewBrowser, a.state)

	_, cmd := a.Update(views.StartRefreshMsg{})
	assert.Equal(t, ViewScan, a.state)
	assert.NotNil(t, cmd)
}

func TestApp_FailedScanQuits(t *testing.T) {
	a := NewApp(&fakeScanner{}, []string{"/nowhere"})
	a.Init()

	a.Update(scanDoneMsg{err: errors.New("failed to enumerate files")})
	assert.Equal(t, ViewScan, a.state)
	assert.Contains(t, a.View(), "failed to enumerate files")

	a.reporter.Finish()
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_CtrlCCancelsRunningScan(t *testing.T) {
	a := NewApp(&fakeScanner{}, []string{"/data"})
	a.Init()

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Nil(t, cmd)
	assert.Contains(t, a.View(), "Stopping")
}
