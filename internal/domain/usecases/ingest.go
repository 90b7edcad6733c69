// Package usecases contains application business rules.
// Usecases orchestrate entities through port interfaces and carry no framework code.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

// IngestMode selects how a run treats identities missing from its input.
type IngestMode int

const (
	// ModeIncremental upserts and deletes only stale chunks of the sources
	// present in the input.
	ModeIncremental IngestMode = iota
	// ModeSync upserts and deletes every recorded chunk absent from the input.
	ModeSync
	// ModeRecreate drops the collection and document store, then inserts all.
	ModeRecreate
)

func (m IngestMode) String() string {
	switch m {
	case ModeSync:
		return "sync"
	case ModeRecreate:
		return "recreate"
	default:
		return "incremental"
	}
}

// IngestConfig holds the pipeline settings injected at startup.
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	ChunkUnit    ChunkUnit
	BatchSize    int // chunks embedded and upserted together
}

// IngestReport summarizes a pipeline run.
type IngestReport struct {
	Mode      IngestMode
	Documents int
	Chunks    int
	Inserted  int
	Updated   int
	Skipped   int
	Deleted   int
	Before    entities.CollectionStats
	After     entities.CollectionStats
	Duration  time.Duration
}

// IngestUseCase turns documents into chunks and keeps the vector store and
// the document store in step.
type IngestUseCase struct {
	embedder    ports.EmbeddingService
	vectorStore ports.VectorStore
	docStore    ports.DocumentStore
	loader      ports.DocumentLoader
	chunker     *Chunker
	batchSize   int

	locks sync.Map // collection name -> *sync.Mutex
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(
	embedder ports.EmbeddingService,
	vectorStore ports.VectorStore,
	docStore ports.DocumentStore,
	loader ports.DocumentLoader,
	cfg IngestConfig,
) *IngestUseCase {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &IngestUseCase{
		embedder:    embedder,
		vectorStore: vectorStore,
		docStore:    docStore,
		loader:      loader,
		chunker: NewChunker(
			WithChunkSize(cfg.ChunkSize),
			WithOverlap(cfg.ChunkOverlap),
			WithUnit(cfg.ChunkUnit),
		),
		batchSize: cfg.BatchSize,
	}
}

// Ingest upserts documents without deleting anything and returns the chunks
// derived from the input.
func (uc *IngestUseCase) Ingest(ctx context.Context, docs []*entities.Document) ([]entities.Chunk, error) {
	mu := uc.lock()
	mu.Lock()
	defer mu.Unlock()

	chunks, _, err := uc.run(ctx, docs, ModeIncremental, false)
	return chunks, err
}

// IngestFile loads one file and ingests it incrementally. Stale chunks of the
// same file are removed; other sources are left alone. A missing file returns
// ErrNotFound before any store is touched. The result reports whether any
// chunk was written or deleted.
func (uc *IngestUseCase) IngestFile(ctx context.Context, path string) (bool, error) {
	path = entities.CanonicalPath(path)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("%w: %s", entities.ErrNotFound, path)
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	doc, err := uc.loader.Load(ctx, path)
	if err != nil {
		return false, fmt.Errorf("loading %s: %w", path, err)
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]string{}
	}
	doc.Metadata[entities.MetaSource] = path
	if _, ok := doc.Metadata[entities.MetaPrivate]; !ok {
		doc.Metadata[entities.MetaPrivate] = "false"
	}

	mu := uc.lock()
	mu.Lock()
	defer mu.Unlock()

	_, report, err := uc.run(ctx, []*entities.Document{doc}, ModeIncremental, true)
	if err != nil {
		return false, err
	}
	return report.Inserted+report.Updated+report.Deleted > 0, nil
}

// RemoveFile deletes every chunk recorded for the file at path.
func (uc *IngestUseCase) RemoveFile(ctx context.Context, path string) (int, error) {
	return uc.RemoveSource(ctx, entities.CanonicalPath(path))
}

// RemoveSource deletes every chunk recorded for source from both stores.
func (uc *IngestUseCase) RemoveSource(ctx context.Context, source string) (int, error) {
	mu := uc.lock()
	mu.Lock()
	defer mu.Unlock()

	ids, err := uc.docStore.IDsBySource(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("listing chunks of %s: %w", source, err)
	}
	if err := uc.deleteChunks(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Reindex runs a full pass over docs. Runs against the same collection are
// serialized; a second caller waits for the first.
func (uc *IngestUseCase) Reindex(ctx context.Context, docs []*entities.Document, mode IngestMode) (*IngestReport, error) {
	mu := uc.lock()
	mu.Lock()
	defer mu.Unlock()
	return uc.reindexLocked(ctx, docs, mode)
}

// TryReindex is Reindex that fails fast with ErrReindexInProgress instead of waiting.
func (uc *IngestUseCase) TryReindex(ctx context.Context, docs []*entities.Document, mode IngestMode) (*IngestReport, error) {
	mu := uc.lock()
	if !mu.TryLock() {
		return nil, fmt.Errorf("collection %s: %w", uc.vectorStore.Name(), entities.ErrReindexInProgress)
	}
	defer mu.Unlock()
	return uc.reindexLocked(ctx, docs, mode)
}

func (uc *IngestUseCase) reindexLocked(ctx context.Context, docs []*entities.Document, mode IngestMode) (*IngestReport, error) {
	if mode == ModeIncremental {
		mode = ModeSync
	}
	for _, d := range docs {
		if d.Metadata == nil {
			d.Metadata = map[string]string{}
		}
		if _, ok := d.Metadata[entities.MetaPrivate]; !ok {
			d.Metadata[entities.MetaPrivate] = "false"
		}
	}
	_, report, err := uc.run(ctx, docs, mode, true)
	return report, err
}

func (uc *IngestUseCase) lock() *sync.Mutex {
	mu, _ := uc.locks.LoadOrStore(uc.vectorStore.Name(), &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// run is the UPSERTS_AND_DELETE pass. Callers hold the collection lock.
func (uc *IngestUseCase) run(ctx context.Context, docs []*entities.Document, mode IngestMode, deleteStale bool) ([]entities.Chunk, *IngestReport, error) {
	started := time.Now()
	report := &IngestReport{Mode: mode}

	before, err := uc.vectorStore.Stats(ctx)
	if err != nil {
		log.Printf("[WARN] Reading collection stats: %v", err)
	}
	report.Before = before
	log.Printf("[INFO] Ingest (%s) start: points=%d segments=%d", mode, before.PointCount, before.SegmentCount)

	if mode == ModeRecreate {
		// A failed recreate after the clear leaves unrecorded points behind
		// until the next successful recreate.
		if err := uc.docStore.Clear(ctx); err != nil {
			return nil, report, fmt.Errorf("clearing document store: %w", err)
		}
		if err := uc.vectorStore.EnsureCollection(ctx, true); err != nil {
			return nil, report, fmt.Errorf("%w: recreating collection after clearing records: %v", entities.ErrConsistency, err)
		}
	}

	chunks, sources := uc.split(docs)
	report.Documents = len(docs)
	report.Chunks = len(chunks)

	current := make(map[string]struct{}, len(chunks))
	var pending []entities.Chunk
	var updates int
	for _, c := range chunks {
		current[c.ID] = struct{}{}
		rec, err := uc.docStore.Get(ctx, c.ID)
		switch {
		case errors.Is(err, entities.ErrNotFound):
			pending = append(pending, c)
		case err != nil:
			return nil, report, fmt.Errorf("reading document store: %w", err)
		case rec.ContentHash == c.ContentHash:
			report.Skipped++
		default:
			pending = append(pending, c)
			updates++
		}
	}

	for start := 0; start < len(pending); start += uc.batchSize {
		end := start + uc.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		if err := uc.commitBatch(ctx, pending[start:end]); err != nil {
			return nil, report, err
		}
	}
	report.Updated = updates
	report.Inserted = len(pending) - updates

	if deleteStale && mode != ModeRecreate {
		stale, err := uc.staleIDs(ctx, mode, sources, current)
		if err != nil {
			return nil, report, err
		}
		if err := uc.deleteChunks(ctx, stale); err != nil {
			return nil, report, err
		}
		report.Deleted = len(stale)
	}

	after, err := uc.vectorStore.Stats(ctx)
	if err != nil {
		log.Printf("[WARN] Reading collection stats: %v", err)
	}
	report.After = after
	report.Duration = time.Since(started)
	log.Printf("[INFO] Ingest (%s) done in %v: docs=%d chunks=%d inserted=%d updated=%d skipped=%d deleted=%d points=%d segments=%d",
		mode, report.Duration.Round(time.Millisecond), report.Documents, report.Chunks,
		report.Inserted, report.Updated, report.Skipped, report.Deleted, after.PointCount, after.SegmentCount)

	return chunks, report, nil
}

// split chunks every document with content and returns the chunks together
// with the set of sources seen.
func (uc *IngestUseCase) split(docs []*entities.Document) ([]entities.Chunk, map[string]struct{}) {
	sources := make(map[string]struct{}, len(docs))
	seen := make(map[string]struct{})
	var chunks []entities.Chunk
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if doc.Metadata == nil {
			doc.Metadata = map[string]string{}
		}
		if doc.Metadata[entities.MetaSource] == "" {
			doc.Metadata[entities.MetaSource] = doc.Source()
		}
		source := doc.Metadata[entities.MetaSource]
		// an emptied source still counts so its old chunks become stale
		sources[source] = struct{}{}
		split := uc.chunker.Split(doc)
		if len(split) == 0 {
			log.Printf("[WARN] Skipping empty document %s", source)
			continue
		}
		for _, c := range split {
			if _, dup := seen[c.ID]; dup {
				log.Printf("[WARN] Duplicate chunk %s from %s ignored", c.ID, source)
				continue
			}
			seen[c.ID] = struct{}{}
			chunks = append(chunks, c)
		}
	}
	return chunks, sources
}

// commitBatch embeds a batch, writes it to the vector store and then records
// it in the document store. If recording fails the batch is removed from the
// vector store again so neither store holds identities the other lacks.
func (uc *IngestUseCase) commitBatch(ctx context.Context, batch []entities.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	embeddings, err := uc.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("%w: got %d embeddings for %d chunks", entities.ErrUpstream, len(embeddings), len(batch))
	}
	for i := range batch {
		batch[i].Embedding = embeddings[i]
	}

	if err := uc.vectorStore.Upsert(ctx, batch); err != nil {
		return fmt.Errorf("upserting chunks: %w", err)
	}

	now := time.Now().UTC()
	for i, c := range batch {
		err := uc.docStore.Put(ctx, entities.DocRecord{
			ID:          c.ID,
			ContentHash: c.ContentHash,
			Source:      c.Source(),
			UpdatedAt:   now,
		})
		if err == nil {
			continue
		}
		unrecorded := make([]string, 0, len(batch)-i)
		for _, u := range batch[i:] {
			unrecorded = append(unrecorded, u.ID)
		}
		if derr := uc.vectorStore.Delete(ctx, unrecorded); derr != nil {
			return fmt.Errorf("%w: recording chunk %s: %v (rollback: %v)", entities.ErrConsistency, c.ID, err, derr)
		}
		return fmt.Errorf("recording chunk %s: %w", c.ID, err)
	}
	return nil
}

func (uc *IngestUseCase) staleIDs(ctx context.Context, mode IngestMode, sources map[string]struct{}, current map[string]struct{}) ([]string, error) {
	var candidates []string
	if mode == ModeSync {
		ids, err := uc.docStore.IDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing document store: %w", err)
		}
		candidates = ids
	} else {
		for source := range sources {
			ids, err := uc.docStore.IDsBySource(ctx, source)
			if err != nil {
				return nil, fmt.Errorf("listing chunks of %s: %w", source, err)
			}
			candidates = append(candidates, ids...)
		}
	}

	var stale []string
	for _, id := range candidates {
		if _, ok := current[id]; !ok {
			stale = append(stale, id)
		}
	}
	return stale, nil
}

// deleteChunks removes ids from the vector store first, then from the
// document store, so a failure leaves records that the next run deletes again.
func (uc *IngestUseCase) deleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := uc.vectorStore.Delete(ctx, ids); err != nil {
		return fmt.Errorf("deleting stale vectors: %w", err)
	}
	for _, id := range ids {
		if err := uc.docStore.Delete(ctx, id); err != nil {
			return fmt.Errorf("deleting record %s: %w", id, err)
		}
	}
	return nil
}
