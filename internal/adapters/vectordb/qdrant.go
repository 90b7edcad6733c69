package vectordb

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

var _ ports.VectorStore = (*QdrantStore)(nil)

// Payload keys written next to the chunk metadata.
const (
	payloadText        = "text"
	payloadChunkID     = "chunk_id"
	payloadContentHash = "content_hash"
	payloadChunkIndex  = "chunk_index"
)

// pointNamespace scopes deterministic point ids.
var pointNamespace = uuid.MustParse("6f1c1a52-8f6e-4c55-9a44-2b1f3b0f5e11")

// qdrantAPI is the subset of *qdrant.Client the store needs.
type qdrantAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	Close() error
}

// QdrantConfig names the remote collection.
type QdrantConfig struct {
	URL        string // http(s)://host[:port]; the REST port 6333 maps to gRPC 6334
	APIKey     string
	Collection string
	Dimension  uint64
}

// QdrantStore keeps chunks in a Qdrant collection.
type QdrantStore struct {
	client     qdrantAPI
	collection string
	dimension  uint64
}

// NewQdrantStore connects to Qdrant. It does not create the collection; call
// EnsureCollection before use.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: QDRANT_COLLECTION is not set", entities.ErrConfig)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: QDRANT_URL is not set", entities.ErrConfig)
	}
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", entities.ErrUpstream, err)
	}
	return newQdrantStore(client, cfg), nil
}

func newQdrantStore(client qdrantAPI, cfg QdrantConfig) *QdrantStore {
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}
	return &QdrantStore{client: client, collection: cfg.Collection, dimension: cfg.Dimension}
}

func (s *QdrantStore) Name() string { return s.collection }

// EnsureCollection creates the collection if needed. With forceRecreate an
// existing collection is deleted first.
func (s *QdrantStore) EnsureCollection(ctx context.Context, forceRecreate bool) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %v", entities.ErrUpstream, err)
	}
	if exists && forceRecreate {
		log.Printf("[INFO] Recreating collection %s", s.collection)
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("%w: deleting collection: %v", entities.ErrUpstream, err)
		}
		exists = false
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: creating collection: %v", entities.ErrUpstream, err)
	}
	return nil
}

// Upsert writes chunks as points keyed by their identity.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []entities.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(c.ID)),
			Vectors: qdrant.NewVectors(c.Embedding...),
			Payload: qdrant.NewValueMap(chunkPayload(c)),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: upserting points: %v", entities.ErrUpstream, err)
	}
	return nil
}

// Query runs a similarity search with optional payload filters.
func (s *QdrantStore) Query(ctx context.Context, embedding []float32, opts entities.SearchOptions) ([]entities.QueryResult, error) {
	limit := uint64(opts.TopK)
	if limit == 0 {
		limit = 2
	}
	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(limit),
		Filter:         buildFilter(opts.Filter),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.Threshold > 0 {
		req.ScoreThreshold = qdrant.PtrOf(float32(opts.Threshold))
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: querying points: %v", entities.ErrUpstream, err)
	}

	results := make([]entities.QueryResult, 0, len(points))
	for _, p := range points {
		chunk := payloadChunk(p.GetPayload())
		results = append(results, entities.QueryResult{
			Chunk:     chunk,
			Score:     float64(p.GetScore()),
			SourceDoc: fileName(chunk.Metadata),
		})
	}
	return rank(results, opts), nil
}

// Delete removes points by chunk identity.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(PointID(id))
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("%w: deleting points: %v", entities.ErrUpstream, err)
	}
	return nil
}

// Stats reports the collection's point and segment counts. A missing
// collection reports zero.
func (s *QdrantStore) Stats(ctx context.Context) (entities.CollectionStats, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return entities.CollectionStats{}, fmt.Errorf("%w: checking collection: %v", entities.ErrUpstream, err)
	}
	if !exists {
		return entities.CollectionStats{}, nil
	}
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return entities.CollectionStats{}, fmt.Errorf("%w: collection info: %v", entities.ErrUpstream, err)
	}
	return entities.CollectionStats{
		PointCount:   info.GetPointsCount(),
		SegmentCount: info.GetSegmentsCount(),
	}, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// PointID maps a chunk identity to a deterministic point UUID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

func chunkPayload(c entities.Chunk) map[string]any {
	payload := make(map[string]any, len(c.Metadata)+4)
	for k, v := range c.Metadata {
		payload[k] = v
	}
	payload[payloadText] = c.Content
	payload[payloadChunkID] = c.ID
	payload[payloadContentHash] = c.ContentHash
	payload[payloadChunkIndex] = int64(c.Index)
	if _, ok := payload[entities.MetaDocID]; !ok {
		payload[entities.MetaDocID] = c.DocumentID
	}
	return payload
}

func payloadChunk(payload map[string]*qdrant.Value) entities.Chunk {
	chunk := entities.Chunk{Metadata: make(map[string]string, len(payload))}
	for k, v := range payload {
		switch k {
		case payloadText:
			chunk.Content = v.GetStringValue()
		case payloadChunkID:
			chunk.ID = v.GetStringValue()
		case payloadContentHash:
			chunk.ContentHash = v.GetStringValue()
		case payloadChunkIndex:
			chunk.Index = int(v.GetIntegerValue())
		default:
			chunk.Metadata[k] = v.GetStringValue()
		}
	}
	chunk.DocumentID = chunk.Metadata[entities.MetaDocID]
	return chunk
}

// buildFilter translates a SearchFilter into Qdrant conditions.
func buildFilter(f *entities.SearchFilter) *qdrant.Filter {
	if f == nil {
		return nil
	}
	var must []*qdrant.Condition
	if len(f.DocIDs) > 0 {
		must = append(must, qdrant.NewMatchKeywords(entities.MetaDocID, f.DocIDs...))
	}
	if f.Private != nil {
		must = append(must, qdrant.NewMatch(entities.MetaPrivate, strconv.FormatBool(*f.Private)))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// parseQdrantURL splits a Qdrant endpoint into gRPC host, port and TLS flag.
func parseQdrantURL(raw string) (string, int, bool, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", 0, false, fmt.Errorf("%w: invalid QDRANT_URL %q", entities.ErrConfig, raw)
	}
	port := 6334
	if p := u.Port(); p != "" && p != "6333" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("%w: invalid QDRANT_URL port %q", entities.ErrConfig, p)
		}
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}
