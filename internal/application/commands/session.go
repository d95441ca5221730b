package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/CodeChoreography/dicomity/internal/application"
	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

// ErrNoScan is returned by Refresh before any scan has run.
var ErrNoScan = errors.New("nothing scanned yet")

// Session ties a header cache, its persistent store and the latest registry
// together for the front ends.
type Session struct {
	mu       sync.Mutex
	cache    *application.HeaderCache
	lister   ports.FileLister
	store    ports.CacheStore
	opts     ScanOptions
	registry *domain.Registry
	roots    []string
}

// NewSession creates a session. store may be nil to run without a persistent
// cache.
func NewSession(cache *application.HeaderCache, lister ports.FileLister, store ports.CacheStore, opts ScanOptions) *Session {
	return &Session{cache: cache, lister: lister, store: store, opts: opts}
}

// Open loads persisted cache entries.
func (s *Session) Open() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Open(); err != nil {
		return fmt.Errorf("failed to open cache store: %w", err)
	}
	entries, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load cache: %w", err)
	}
	s.cache.Load(entries)
	s.opts.logger().Debug("cache loaded", zap.Int("entries", len(entries)))
	return nil
}

// Close persists the cache and releases the store.
func (s *Session) Close() error {
	if s.store == nil {
		return nil
	}
	saveErr := s.store.Save(s.cache.Dump())
	closeErr := s.store.Close()
	if saveErr != nil {
		return fmt.Errorf("failed to save cache: %w", saveErr)
	}
	return closeErr
}

// Scan enumerates roots and builds a fresh registry. An enumeration failure
// aborts the scan.
func (s *Session) Scan(ctx context.Context, roots []string, progress ports.ProgressReporter) (*domain.ScanReport, error) {
	if err := application.ValidatePaths(roots); err != nil {
		return nil, err
	}
	paths, err := s.lister.List(ctx, roots)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate files: %w", err)
	}

	opts := s.opts
	opts.Progress = progress
	reg, report, err := NewScanCommand(s.cache, paths, opts).Execute(ctx)
	if err != nil {
		if errors.Is(err, application.ErrNoPaths) {
			reg, report = domain.NewRegistry(opts.Registry), emptyReport()
		} else {
			return nil, err
		}
	}

	s.mu.Lock()
	s.registry = reg
	s.roots = slices.Clone(roots)
	s.mu.Unlock()
	return report, nil
}

// Refresh re-enumerates the roots of the last scan, folding in new or changed
// files and dropping vanished ones.
func (s *Session) Refresh(ctx context.Context, progress ports.ProgressReporter) (*domain.ScanReport, error) {
	s.mu.Lock()
	reg, roots := s.registry, s.roots
	s.mu.Unlock()
	if reg == nil {
		return nil, ErrNoScan
	}

	paths, err := s.lister.List(ctx, roots)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate files: %w", err)
	}

	present := make(map[string]bool, len(paths))
	for _, p := range paths {
		present[p] = true
	}
	var vanished []string
	for _, p := range reg.Paths() {
		if !present[p] {
			vanished = append(vanished, p)
		}
	}

	opts := s.opts
	opts.Progress = progress
	cmd := NewUpdateCommand(s.cache, reg, paths, opts)
	cmd.Vanished = vanished
	if len(paths) == 0 && len(vanished) == 0 {
		return emptyReport(), nil
	}
	return cmd.Execute(ctx)
}

// Registry returns the registry of the last scan, nil before the first.
func (s *Session) Registry() *domain.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry
}

// Roots returns the roots of the last scan.
func (s *Session) Roots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.roots)
}

// ClearCache forgets every cached header. The store is emptied on Close.
func (s *Session) ClearCache() {
	s.cache.Reset()
}

// CacheStats returns the header cache counters.
func (s *Session) CacheStats() domain.CacheStats {
	return s.cache.Stats()
}

func emptyReport() *domain.ScanReport {
	return &domain.ScanReport{}
}
