package vectordb

import (
	"context"
	"errors"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
)

// fakeQdrant records calls made through qdrantAPI
type fakeQdrant struct {
	exists   bool
	created  int
	deleted  int
	upserts  []*qdrant.UpsertPoints
	queries  []*qdrant.QueryPoints
	removals []*qdrant.DeletePoints
	hits     []*qdrant.ScoredPoint
	points   uint64
	err      error
}

func (f *fakeQdrant) CollectionExists(ctx context.Context, name string) (bool, error) {
	return f.exists, f.err
}

func (f *fakeQdrant) CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error {
	f.created++
	f.exists = true
	return f.err
}

func (f *fakeQdrant) DeleteCollection(ctx context.Context, name string) error {
	f.deleted++
	f.exists = false
	return f.err
}

func (f *fakeQdrant) Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.upserts = append(f.upserts, req)
	return &qdrant.UpdateResult{}, f.err
}

func (f *fakeQdrant) Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.queries = append(f.queries, req)
	return f.hits, f.err
}

func (f *fakeQdrant) Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error) {
	f.removals = append(f.removals, req)
	return &qdrant.UpdateResult{}, f.err
}

func (f *fakeQdrant) GetCollectionInfo(ctx context.Context, name string) (*qdrant.CollectionInfo, error) {
	return &qdrant.CollectionInfo{PointsCount: qdrant.PtrOf(f.points), SegmentsCount: 2}, f.err
}

func (f *fakeQdrant) Close() error { return nil }

func TestNewQdrantStore_ConfigErrors(t *testing.T) {
	_, err := NewQdrantStore(QdrantConfig{URL: "http://localhost:6333"})
	assert.True(t, errors.Is(err, entities.ErrConfig))

	_, err = NewQdrantStore(QdrantConfig{Collection: "docs"})
	assert.True(t, errors.Is(err, entities.ErrConfig))
}

func TestParseQdrantURL(t *testing.T) {
	host, port, tls, err := parseQdrantURL("http://localhost:6333")
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
	assert.Equal(t, 6334, port)
	assert.False(t, tls)

	host, port, tls, err = parseQdrantURL("https://xyz.cloud.qdrant.io:7000")
	require.NoError(t, err)
	assert.Equal(t, "xyz.cloud.qdrant.io", host)
	assert.Equal(t, 7000, port)
	assert.True(t, tls)

	_, port, _, err = parseQdrantURL("qdrant")
	require.NoError(t, err)
	assert.Equal(t, 6334, port)
}

func TestQdrantStore_EnsureCollection(t *testing.T) {
	fake := &fakeQdrant{}
	store := newQdrantStore(fake, QdrantConfig{Collection: "docs", Dimension: 3})
	ctx := context.Background()

	require.NoError(t, store.EnsureCollection(ctx, false))
	require.NoError(t, store.EnsureCollection(ctx, false))
	assert.Equal(t, 1, fake.created)
	assert.Zero(t, fake.deleted)

	require.NoError(t, store.EnsureCollection(ctx, true))
	assert.Equal(t, 1, fake.deleted)
	assert.Equal(t, 2, fake.created)
}

func TestQdrantStore_UpsertUsesDeterministicIDs(t *testing.T) {
	fake := &fakeQdrant{exists: true}
	store := newQdrantStore(fake, QdrantConfig{Collection: "docs"})
	c := chunk("chunk-1", "doc1", "hello", 1, 0, 0)

	require.NoError(t, store.Upsert(context.Background(), []entities.Chunk{c}))
	require.NoError(t, store.Upsert(context.Background(), []entities.Chunk{c}))

	require.Len(t, fake.upserts, 2)
	first := fake.upserts[0].Points[0]
	second := fake.upserts[1].Points[0]
	assert.Equal(t, first.GetId().GetUuid(), second.GetId().GetUuid())
	assert.Equal(t, PointID("chunk-1"), first.GetId().GetUuid())
	assert.Equal(t, "hello", first.GetPayload()[payloadText].GetStringValue())
	assert.Equal(t, "doc1", first.GetPayload()[entities.MetaDocID].GetStringValue())
}

func TestQdrantStore_QueryMapsPayload(t *testing.T) {
	fake := &fakeQdrant{exists: true, hits: []*qdrant.ScoredPoint{
		{
			Id:    qdrant.NewID(PointID("c2")),
			Score: 0.4,
			Payload: qdrant.NewValueMap(map[string]any{
				payloadText: "low", payloadChunkID: "c2", entities.MetaFileName: "b.pdf",
			}),
		},
		{
			Id:    qdrant.NewID(PointID("c1")),
			Score: 0.9,
			Payload: qdrant.NewValueMap(map[string]any{
				payloadText: "high", payloadChunkID: "c1", entities.MetaFileName: "a.pdf",
				entities.MetaDocID: "doc1", payloadChunkIndex: int64(3),
			}),
		},
	}}
	store := newQdrantStore(fake, QdrantConfig{Collection: "docs"})

	results, err := store.Query(context.Background(), []float32{1, 0}, entities.SearchOptions{
		TopK:   2,
		Filter: &entities.SearchFilter{DocIDs: []string{"doc1"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].Chunk.ID)
	assert.Equal(t, "a.pdf", results[0].SourceDoc)
	assert.Equal(t, 3, results[0].Chunk.Index)
	assert.Equal(t, "doc1", results[0].Chunk.DocumentID)
	assert.InDelta(t, 0.9, results[0].Score, 1e-6)

	req := fake.queries[0]
	assert.Equal(t, uint64(2), req.GetLimit())
	require.NotNil(t, req.GetFilter())
	assert.Len(t, req.GetFilter().GetMust(), 1)
}

func TestQdrantStore_DeleteAndStats(t *testing.T) {
	fake := &fakeQdrant{exists: true, points: 7}
	store := newQdrantStore(fake, QdrantConfig{Collection: "docs"})
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, nil))
	assert.Empty(t, fake.removals)
	require.NoError(t, store.Delete(ctx, []string{"a", "b"}))
	assert.Len(t, fake.removals, 1)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), stats.PointCount)
	assert.Equal(t, uint64(2), stats.SegmentCount)

	fake.exists = false
	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PointCount)
}

func TestQdrantStore_ErrorsAreUpstream(t *testing.T) {
	fake := &fakeQdrant{exists: true, err: errors.New("unavailable")}
	store := newQdrantStore(fake, QdrantConfig{Collection: "docs"})

	err := store.Upsert(context.Background(), []entities.Chunk{chunk("c", "d", "t", 1)})
	assert.True(t, errors.Is(err, entities.ErrUpstream))
}

func TestBuildFilter(t *testing.T) {
	assert.Nil(t, buildFilter(nil))
	assert.Nil(t, buildFilter(&entities.SearchFilter{}))

	private := false
	f := buildFilter(&entities.SearchFilter{DocIDs: []string{"a"}, Private: &private})
	assert.Len(t, f.GetMust(), 2)
}
