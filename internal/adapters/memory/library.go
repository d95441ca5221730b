// Package memory provides in-memory implementations of the file and cache
// ports for tests. Nothing outside _test.go files imports it.
package memory

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

type file struct {
	fingerprint domain.Fingerprint
	tags        domain.TagValues
	err         error
}

// Library is a set of virtual files. It implements ports.HeaderParser,
// ports.FileInspector and ports.FileLister.
type Library struct {
	mu    sync.RWMutex
	files map[string]file
	// gate, when set, blocks every Parse until it is closed.
	gate chan struct{}

	parses atomic.Int64
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{files: make(map[string]file)}
}

// Put adds or replaces a DICOM file.
func (l *Library) Put(path string, fp domain.Fingerprint, tags domain.TagValues) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files[path] = file{fingerprint: fp, tags: tags}
}

// PutBroken adds a file whose parse fails with err.
func (l *Library) PutBroken(path string, fp domain.Fingerprint, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files[path] = file{fingerprint: fp, err: err}
}

// Delete removes a file.
func (l *Library) Delete(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.files, path)
}

// Touch bumps the modification time of path.
func (l *Library) Touch(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if f, ok := l.files[path]; ok {
		f.fingerprint.ModTime++
		l.files[path] = f
	}
}

// Hold makes Parse block until the returned release func is called.
func (l *Library) Hold() (release func()) {
	gate := make(chan struct{})
	l.mu.Lock()
	l.gate = gate
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.gate = nil
			l.mu.Unlock()
			close(gate)
		})
	}
}

// Parses returns how many times Parse ran.
func (l *Library) Parses() int {
	return int(l.parses.Load())
}

// Parse implements ports.HeaderParser.
func (l *Library) Parse(ctx context.Context, path string) (domain.TagValues, error) {
	l.parses.Add(1)

	l.mu.RLock()
	gate := l.gate
	f, ok := l.files[path]
	l.mu.RUnlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.tags, nil
}

// Fingerprint implements ports.FileInspector.
func (l *Library) Fingerprint(path string) (domain.Fingerprint, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.files[path]
	if !ok {
		return domain.Fingerprint{}, fmt.Errorf("stat %s: %w", path, fs.ErrNotExist)
	}
	return f.fingerprint, nil
}

// List implements ports.FileLister. A root matches itself and every path
// below it.
func (l *Library) List(ctx context.Context, roots []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []string
	for _, root := range roots {
		if _, ok := l.files[root]; ok {
			out = append(out, root)
			continue
		}
		prefix := strings.TrimSuffix(root, "/") + "/"
		found := false
		for p := range l.files {
			if strings.HasPrefix(p, prefix) {
				out = append(out, p)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("list %s: %w", root, fs.ErrNotExist)
		}
	}
	return domain.SortNatural(out), nil
}

var (
	_ ports.HeaderParser  = (*Library)(nil)
	_ ports.FileInspector = (*Library)(nil)
	_ ports.FileLister    = (*Library)(nil)
)
