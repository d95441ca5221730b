package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/CodeChoreography/dicomity/internal/domain"
)

// entryTx batches entry writes
type entryTx struct {
	tx   *sql.Tx
	stmt *sql.Stmt
}

func (s *Store) beginTx() (*entryTx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO entries (path, size, mtime, header)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	return &entryTx{tx: tx, stmt: stmt}, nil
}

// Upsert inserts or replaces one entry
func (t *entryTx) Upsert(e domain.CacheEntry) error {
	blob, err := json.Marshal(e.Header)
	if err != nil {
		return err
	}
	_, err = t.stmt.Exec(e.Path, e.Fingerprint.Size, e.Fingerprint.ModTime, blob)
	return err
}

// DeleteAll empties the entries table
func (t *entryTx) DeleteAll() error {
	_, err := t.tx.Exec(`DELETE FROM entries`)
	return err
}

// Commit commits the transaction
func (t *entryTx) Commit() error {
	t.stmt.Close()
	return t.tx.Commit()
}

// Rollback aborts the transaction
func (t *entryTx) Rollback() error {
	t.stmt.Close()
	return t.tx.Rollback()
}
