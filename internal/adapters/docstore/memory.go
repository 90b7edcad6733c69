package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

var _ ports.DocumentStore = (*MemoryStore)(nil)

// MemoryStore keeps records in a map. Used with the in-memory vector store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]entities.DocRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]entities.DocRecord)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*entities.DocRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, entities.ErrNotFound)
	}
	return &rec, nil
}

func (s *MemoryStore) Put(ctx context.Context, rec entities.DocRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) IDs(ctx context.Context) ([]string, error) {
	return s.filter(func(entities.DocRecord) bool { return true }), nil
}

func (s *MemoryStore) IDsBySource(ctx context.Context, source string) ([]string, error) {
	return s.filter(func(r entities.DocRecord) bool { return r.Source == source }), nil
}

func (s *MemoryStore) filter(keep func(entities.DocRecord) bool) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, rec := range s.records {
		if keep(rec) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]entities.DocRecord)
	return nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}
