package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

// schemaVersion changes whenever the stored header layout does. A store with
// another version is emptied on open.
const schemaVersion = "2"

// Store implements ports.CacheStore using SQLite
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Ensure Store implements CacheStore
var _ ports.CacheStore = (*Store)(nil)

// NewStore creates a store backed by the database file at path
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the database file location
func (s *Store) Path() string {
	return s.path
}

// Open creates the database and schema if needed
func (s *Store) Open() error {
	path, err := expandHome(s.path)
	if err != nil {
		return err
	}
	s.path = path

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	// WAL lets a second process read while one saves
	db, err := sql.Open("sqlite3", s.path+"?_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	// Performance pragmas + schema in single batch (reduces round-trips)
	_, err = db.Exec(`
		PRAGMA synchronous = NORMAL;
		PRAGMA cache_size = -64000;
		PRAGMA temp_store = MEMORY;
		PRAGMA busy_timeout = 5000;

		CREATE TABLE IF NOT EXISTS entries (
			path TEXT PRIMARY KEY,
			size INTEGER NOT NULL,
			mtime INTEGER NOT NULL,
			header BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to setup database: %w", err)
	}

	if s.needsRebuild() {
		s.logger.Info("cache schema changed, discarding entries", zap.String("path", s.path))
		if _, err := db.Exec(`DELETE FROM entries`); err != nil {
			db.Close()
			return fmt.Errorf("failed to reset cache: %w", err)
		}
	}

	if err := s.updateMeta(); err != nil {
		db.Close()
		return fmt.Errorf("failed to update metadata: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// needsRebuild returns true if stored entries were written by another schema
func (s *Store) needsRebuild() bool {
	var version string
	s.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version)
	return version != "" && version != schemaVersion
}

func (s *Store) updateMeta() error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)`, schemaVersion)
	return err
}

// Load returns every stored entry. Rows that fail to decode are skipped.
func (s *Store) Load() ([]domain.CacheEntry, error) {
	rows, err := s.db.Query(`SELECT path, size, mtime, header FROM entries ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.CacheEntry
	for rows.Next() {
		var e domain.CacheEntry
		var blob []byte
		if err := rows.Scan(&e.Path, &e.Fingerprint.Size, &e.Fingerprint.ModTime, &blob); err != nil {
			return nil, err
		}
		var h domain.DicomHeader
		if err := json.Unmarshal(blob, &h); err != nil {
			s.logger.Warn("dropping undecodable cache entry", zap.String("path", e.Path), zap.Error(err))
			continue
		}
		h.Path = e.Path
		h.Fingerprint = e.Fingerprint
		e.Header = &h
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Save replaces the stored entries in one transaction
func (s *Store) Save(entries []domain.CacheEntry) error {
	tx, err := s.beginTx()
	if err != nil {
		return err
	}
	if err := tx.DeleteAll(); err != nil {
		tx.Rollback()
		return err
	}
	for _, e := range entries {
		if e.Header == nil {
			continue
		}
		if err := tx.Upsert(e); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to store %s: %w", e.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache: %w", err)
	}
	s.logger.Debug("cache saved", zap.Int("entries", len(entries)), zap.String("path", s.path))
	return nil
}

// Count returns the number of stored entries
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&n)
	return n, err
}

func expandHome(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
