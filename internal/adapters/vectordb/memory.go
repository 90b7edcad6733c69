// Package vectordb provides vector store adapters implementing ports.VectorStore.
package vectordb

import (
	"context"
	"sync"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

var _ ports.VectorStore = (*InMemoryStore)(nil)

// InMemoryStore is a brute-force vector store held in memory.
type InMemoryStore struct {
	mu     sync.RWMutex
	name   string
	chunks map[string]entities.Chunk // chunkID -> chunk
}

// NewInMemoryStore creates a new in-memory vector store.
func NewInMemoryStore(name string) *InMemoryStore {
	if name == "" {
		name = "memory"
	}
	return &InMemoryStore{
		name:   name,
		chunks: make(map[string]entities.Chunk),
	}
}

func (s *InMemoryStore) Name() string { return s.name }

// EnsureCollection empties the store when forceRecreate is set.
func (s *InMemoryStore) EnsureCollection(ctx context.Context, forceRecreate bool) error {
	if forceRecreate {
		s.mu.Lock()
		s.chunks = make(map[string]entities.Chunk)
		s.mu.Unlock()
	}
	return nil
}

// Upsert saves chunks, replacing existing identities.
func (s *InMemoryStore) Upsert(ctx context.Context, chunks []entities.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		s.chunks[chunk.ID] = chunk
	}
	return nil
}

// Query finds the most similar chunks to a query embedding.
func (s *InMemoryStore) Query(ctx context.Context, embedding []float32, opts entities.SearchOptions) ([]entities.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]entities.QueryResult, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		if !matchesFilter(chunk.Metadata, opts.Filter) {
			continue
		}
		results = append(results, entities.QueryResult{
			Chunk:     chunk,
			Score:     cosineSimilarity(embedding, chunk.Embedding),
			SourceDoc: fileName(chunk.Metadata),
		})
	}
	return rank(results, opts), nil
}

// Delete removes chunks by identity.
func (s *InMemoryStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.chunks, id)
	}
	return nil
}

// Stats reports the number of stored chunks as points in one segment.
func (s *InMemoryStore) Stats(ctx context.Context) (entities.CollectionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entities.CollectionStats{PointCount: uint64(len(s.chunks)), SegmentCount: 1}, nil
}
