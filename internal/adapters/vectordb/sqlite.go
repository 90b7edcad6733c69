package vectordb

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

var _ ports.VectorStore = (*SQLiteStore)(nil)

// SQLiteStore is a local vector store: chunks and float32 embeddings in a
// SQLite table, searched by brute-force cosine similarity.
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	name     string
	dataPath string
}

// NewSQLiteStore opens the collection file <dataPath>/<name>.vectors.db.
func NewSQLiteStore(dataPath, name string) (*SQLiteStore, error) {
	if dataPath == "" {
		dataPath = "./storage"
	}
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is required", entities.ErrConfig)
	}

	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataPath, name+".vectors.db")+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db:       db,
		name:     name,
		dataPath: dataPath,
	}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Name() string { return s.name }

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_document_id ON chunks(document_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// EnsureCollection creates the table, dropping it first when forceRecreate is set.
func (s *SQLiteStore) EnsureCollection(ctx context.Context, forceRecreate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if forceRecreate {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS chunks"); err != nil {
			return fmt.Errorf("dropping collection: %w", err)
		}
	}
	return s.initSchema()
}

// Upsert saves chunks with their embeddings.
func (s *SQLiteStore) Upsert(ctx context.Context, chunks []entities.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (id, document_id, content, content_hash, chunk_index, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		meta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			chunk.ID,
			chunk.DocumentID,
			chunk.Content,
			chunk.ContentHash,
			chunk.Index,
			encodeEmbedding(chunk.Embedding),
			string(meta),
		)
		if err != nil {
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}

	return tx.Commit()
}

// Query scores every stored chunk against embedding.
func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, opts entities.SearchOptions) ([]entities.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, document_id, content, content_hash, chunk_index, embedding, metadata FROM chunks`
	var args []any
	if opts.Filter != nil && len(opts.Filter.DocIDs) > 0 {
		query += ` WHERE document_id IN (?` + strings.Repeat(",?", len(opts.Filter.DocIDs)-1) + `)`
		for _, id := range opts.Filter.DocIDs {
			args = append(args, id)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var results []entities.QueryResult
	for rows.Next() {
		var chunk entities.Chunk
		var blob []byte
		var meta string

		err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.ContentHash, &chunk.Index, &blob, &meta)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &chunk.Metadata); err != nil {
			continue // Skip corrupted rows
		}
		if !matchesFilter(chunk.Metadata, opts.Filter) {
			continue
		}
		chunk.Embedding = decodeEmbedding(blob)

		results = append(results, entities.QueryResult{
			Chunk:     chunk,
			Score:     cosineSimilarity(embedding, chunk.Embedding),
			SourceDoc: fileName(chunk.Metadata),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rank(results, opts), nil
}

// Delete removes chunks by identity.
func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE id IN (?"+strings.Repeat(",?", len(ids)-1)+")", args...)
	return err
}

// Stats reports the chunk count. A SQLite collection is a single segment.
func (s *SQLiteStore) Stats(ctx context.Context) (entities.CollectionStats, error) {
	var count uint64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return entities.CollectionStats{}, err
	}
	return entities.CollectionStats{PointCount: count, SegmentCount: 1}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeEmbedding packs a vector as little-endian float32s.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
