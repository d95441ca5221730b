package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

// HeaderCache hands out parsed headers, re-parsing a file only when its
// fingerprint changes. Concurrent requests for the same file share one parse.
type HeaderCache struct {
	parser    ports.HeaderParser
	inspector ports.FileInspector
	logger    *zap.Logger

	mu      sync.RWMutex
	entries map[string]domain.CacheEntry
	// failed remembers parse failures for the session only.
	failed map[string]failedParse

	group singleflight.Group

	hits     atomic.Uint64
	misses   atomic.Uint64
	parses   atomic.Uint64
	failures atomic.Uint64
}

type failedParse struct {
	fingerprint domain.Fingerprint
	err         error
}

// HeaderCacheOption configures a HeaderCache.
type HeaderCacheOption func(*HeaderCache)

// WithCacheLogger sets the logger used for per-file diagnostics.
func WithCacheLogger(logger *zap.Logger) HeaderCacheOption {
	return func(c *HeaderCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewHeaderCache creates an empty cache.
func NewHeaderCache(parser ports.HeaderParser, inspector ports.FileInspector, opts ...HeaderCacheOption) *HeaderCache {
	c := &HeaderCache{
		parser:    parser,
		inspector: inspector,
		logger:    zap.NewNop(),
		entries:   make(map[string]domain.CacheEntry),
		failed:    make(map[string]failedParse),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrParse returns the header for path, parsing it if needed.
func (c *HeaderCache) GetOrParse(ctx context.Context, path string) (*domain.DicomHeader, error) {
	h, _, err := c.Fetch(ctx, path)
	return h, err
}

// Fetch is GetOrParse that also reports whether the answer came from the
// cache. Failures are always *ParseError, except context errors which are
// returned as is and never remembered.
func (c *HeaderCache) Fetch(ctx context.Context, path string) (*domain.DicomHeader, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	fp, err := c.inspector.Fingerprint(path)
	if err != nil {
		c.failures.Add(1)
		c.Invalidate(path)
		return nil, false, &ParseError{Path: path, Err: err}
	}

	if h, ok, err := c.lookup(path, fp); ok {
		c.hits.Add(1)
		return h, true, err
	}
	c.misses.Add(1)

	key := fmt.Sprintf("%s\x00%d\x00%d", path, fp.Size, fp.ModTime)
	for {
		ch := c.group.DoChan(key, func() (any, error) {
			if h, ok, err := c.lookup(path, fp); ok {
				return h, err
			}
			return c.parse(ctx, path, fp)
		})
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				// The parse belonged to a caller that gave up; this one has not.
				if res.Shared && abandoned(res.Err) && ctx.Err() == nil {
					continue
				}
				return nil, false, res.Err
			}
			return res.Val.(*domain.DicomHeader), false, nil
		}
	}
}

// abandoned reports whether err is a bare context error, which parse returns
// only when its own caller was cancelled.
func abandoned(err error) bool {
	var perr *ParseError
	if errors.As(err, &perr) {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// lookup returns a cached header or remembered failure matching fp.
func (c *HeaderCache) lookup(path string, fp domain.Fingerprint) (*domain.DicomHeader, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.entries[path]; ok && e.Fingerprint == fp {
		return e.Header, true, nil
	}
	if f, ok := c.failed[path]; ok && f.fingerprint == fp {
		return nil, true, f.err
	}
	return nil, false, nil
}

func (c *HeaderCache) parse(ctx context.Context, path string, fp domain.Fingerprint) (*domain.DicomHeader, error) {
	c.parses.Add(1)
	tags, err := c.parser.Parse(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		c.failures.Add(1)
		perr := &ParseError{Path: path, Err: err}

		c.mu.Lock()
		delete(c.entries, path)
		c.failed[path] = failedParse{fingerprint: fp, err: perr}
		c.mu.Unlock()

		c.logger.Debug("parse failed", zap.String("path", path), zap.Error(err))
		return nil, perr
	}

	h := domain.HeaderFromTags(path, fp, tags)

	c.mu.Lock()
	c.entries[path] = domain.CacheEntry{Path: path, Fingerprint: fp, Header: h}
	delete(c.failed, path)
	c.mu.Unlock()

	c.logger.Debug("header parsed", zap.String("path", path))
	return h, nil
}

// Load seeds the cache with persisted entries. Entries without a header are
// ignored.
func (c *HeaderCache) Load(entries []domain.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range entries {
		if e.Header == nil || e.Path == "" {
			continue
		}
		c.entries[e.Path] = e
	}
}

// Dump returns every cached entry sorted by path.
func (c *HeaderCache) Dump() []domain.CacheEntry {
	c.mu.RLock()
	out := make([]domain.CacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.CacheEntry) int { return strings.Compare(a.Path, b.Path) })
	return out
}

// Invalidate forgets everything known about path.
func (c *HeaderCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
	delete(c.failed, path)
}

// Reset forgets every entry and remembered failure.
func (c *HeaderCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]domain.CacheEntry)
	c.failed = make(map[string]failedParse)
}

// Len returns the number of cached headers.
func (c *HeaderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *HeaderCache) Stats() domain.CacheStats {
	return domain.CacheStats{
		Entries:  c.Len(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Parses:   c.parses.Load(),
		Failures: c.failures.Load(),
	}
}
