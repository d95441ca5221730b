package memory

import (
	"slices"
	"sync"

	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

// Store is a ports.CacheStore kept in memory.
type Store struct {
	mu      sync.Mutex
	entries []domain.CacheEntry
	saves   int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) Open() error  { return nil }
func (s *Store) Close() error { return nil }

// Load returns a copy of the stored entries.
func (s *Store) Load() ([]domain.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries), nil
}

// Save replaces the stored entries.
func (s *Store) Save(entries []domain.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = slices.Clone(entries)
	s.saves++
	return nil
}

// Saves returns how many times Save ran.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

var _ ports.CacheStore = (*Store)(nil)
