package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

func stores(t *testing.T) map[string]ports.DocumentStore {
	sqlite, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]ports.DocumentStore{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func TestDocStore_PutGetReplace(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, "c1")
			assert.True(t, errors.Is(err, entities.ErrNotFound))

			require.NoError(t, store.Put(ctx, entities.DocRecord{ID: "c1", ContentHash: "h1", Source: "a.txt"}))
			require.NoError(t, store.Put(ctx, entities.DocRecord{ID: "c1", ContentHash: "h2", Source: "a.txt"}))

			rec, err := store.Get(ctx, "c1")
			require.NoError(t, err)
			assert.Equal(t, "h2", rec.ContentHash)

			n, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestDocStore_IDsBySourceAndDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, entities.DocRecord{ID: "a1", ContentHash: "x", Source: "a.txt"}))
			require.NoError(t, store.Put(ctx, entities.DocRecord{ID: "a2", ContentHash: "x", Source: "a.txt"}))
			require.NoError(t, store.Put(ctx, entities.DocRecord{ID: "b1", ContentHash: "x", Source: "b.txt"}))

			ids, err := store.IDsBySource(ctx, "a.txt")
			require.NoError(t, err)
			assert.Equal(t, []string{"a1", "a2"}, ids)

			require.NoError(t, store.Delete(ctx, "a1"))
			require.NoError(t, store.Delete(ctx, "missing"))
			all, err := store.IDs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a2", "b1"}, all)

			require.NoError(t, store.Clear(ctx))
			n, _ := store.Count(ctx)
			assert.Zero(t, n)
		})
	}
}

func TestSQLiteStore_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, entities.DocRecord{ID: "c1", ContentHash: "h", Source: "a.txt"}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	defer reopened.Close()
	rec, err := reopened.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", rec.Source)
}
