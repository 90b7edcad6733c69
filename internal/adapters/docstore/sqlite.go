// Package docstore provides document store adapters that remember the last
// ingested content hash of every chunk identity.
package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

var _ ports.DocumentStore = (*SQLiteStore)(nil)

// SQLiteStore persists records in a docstore.db file under the storage dir.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the document store in storageDir.
func NewSQLiteStore(storageDir string) (*SQLiteStore, error) {
	if storageDir == "" {
		storageDir = "./storage"
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(storageDir, "docstore.db")+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS doc_records (
		id TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		source TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_doc_records_source ON doc_records(source);
	`)
	return err
}

// Get returns the record for id or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*entities.DocRecord, error) {
	var rec entities.DocRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, content_hash, source, updated_at FROM doc_records WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.ContentHash, &rec.Source, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, entities.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying record: %w", err)
	}
	return &rec, nil
}

// Put inserts or replaces a record.
func (s *SQLiteStore) Put(ctx context.Context, rec entities.DocRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO doc_records (id, content_hash, source, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content_hash = excluded.content_hash,
			source = excluded.source, updated_at = excluded.updated_at
	`, rec.ID, rec.ContentHash, rec.Source, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}

// Delete removes a record. Missing ids are not an error.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM doc_records WHERE id = ?`, id)
	return err
}

// IDs lists every recorded identity.
func (s *SQLiteStore) IDs(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, `SELECT id FROM doc_records ORDER BY id`)
}

// IDsBySource lists the identities recorded for one source.
func (s *SQLiteStore) IDsBySource(ctx context.Context, source string) ([]string, error) {
	return s.queryIDs(ctx, `SELECT id FROM doc_records WHERE source = ? ORDER BY id`, source)
}

func (s *SQLiteStore) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Clear removes all records.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM doc_records`)
	return err
}

// Count returns the number of records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM doc_records`).Scan(&n)
	return n, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
