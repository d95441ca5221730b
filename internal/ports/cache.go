package ports

import "github.com/CodeChoreography/dicomity/internal/domain"

// CacheStore persists header cache entries between runs.
type CacheStore interface {
	// Lifecycle
	Open() error
	Close() error

	// Load returns every stored entry. A missing store yields no entries.
	Load() ([]domain.CacheEntry, error)
	// Save replaces the stored entries with entries.
	Save(entries []domain.CacheEntry) error
}
