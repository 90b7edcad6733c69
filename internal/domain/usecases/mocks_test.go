package usecases

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

// mockEmbedder implements ports.EmbeddingService for testing
type mockEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []float32{float32(len(text)), 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		emb, err := m.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		result[i] = emb
	}
	return result, nil
}

func (m *mockEmbedder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockVectorStore implements ports.VectorStore for testing
type mockVectorStore struct {
	mu        sync.Mutex
	points    map[string]entities.Chunk
	results   []entities.QueryResult
	recreates int
	upsertErr error
	ensureErr error
	lastOpts  entities.SearchOptions
}

func newMockVectorStore() *mockVectorStore {
	return &mockVectorStore{points: map[string]entities.Chunk{}}
}

func (m *mockVectorStore) Name() string { return "test" }

func (m *mockVectorStore) EnsureCollection(ctx context.Context, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ensureErr != nil {
		return m.ensureErr
	}
	if force {
		m.recreates++
		m.points = map[string]entities.Chunk{}
	}
	return nil
}

func (m *mockVectorStore) Upsert(ctx context.Context, chunks []entities.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, c := range chunks {
		m.points[c.ID] = c
	}
	return nil
}

func (m *mockVectorStore) Query(ctx context.Context, emb []float32, opts entities.SearchOptions) ([]entities.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOpts = opts
	if m.results != nil {
		return append([]entities.QueryResult(nil), m.results...), nil
	}
	var out []entities.QueryResult
	for _, c := range m.points {
		out = append(out, entities.QueryResult{Chunk: c, Score: 0.9, SourceDoc: c.Source()})
	}
	if len(out) > opts.TopK {
		out = out[:opts.TopK]
	}
	return out, nil
}

func (m *mockVectorStore) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.points, id)
	}
	return nil
}

func (m *mockVectorStore) Stats(ctx context.Context) (entities.CollectionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return entities.CollectionStats{PointCount: uint64(len(m.points)), SegmentCount: 1}, nil
}

func (m *mockVectorStore) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.points))
	for id := range m.points {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *mockVectorStore) contents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.points {
		out = append(out, c.Content)
	}
	sort.Strings(out)
	return out
}

// mockDocStore implements ports.DocumentStore for testing
type mockDocStore struct {
	mu      sync.Mutex
	records map[string]entities.DocRecord
	putErr  error
	failAt  int // fail the n-th Put when > 0
	puts    int
}

func newMockDocStore() *mockDocStore {
	return &mockDocStore{records: map[string]entities.DocRecord{}}
}

func (m *mockDocStore) Get(ctx context.Context, id string) (*entities.DocRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, entities.ErrNotFound
	}
	return &rec, nil
}

func (m *mockDocStore) Put(ctx context.Context, rec entities.DocRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.failAt > 0 && m.puts == m.failAt {
		return m.putErr
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *mockDocStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *mockDocStore) IDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.records))
	for id := range m.records {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockDocStore) IDsBySource(ctx context.Context, source string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, rec := range m.records {
		if rec.Source == source {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockDocStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = map[string]entities.DocRecord{}
	return nil
}

func (m *mockDocStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

// fileLoader reads plain text files
type fileLoader struct{}

func (fileLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &entities.Document{Name: filepath.Base(path), Path: path, Content: string(data)}, nil
}

func (fileLoader) SupportedExtensions() []string { return []string{".txt"} }

// mockLLM implements ports.LLMService for testing
type mockLLM struct {
	response  string
	tokens    []string
	streamErr error // sent after the tokens
	startErr  error
	lastMsgs  []entities.ChatMessage
	block     bool
}

func (m *mockLLM) Generate(ctx context.Context, messages []entities.ChatMessage) (string, error) {
	m.lastMsgs = messages
	if m.startErr != nil {
		return "", m.startErr
	}
	if m.response != "" {
		return m.response, nil
	}
	return "mocked answer", nil
}

func (m *mockLLM) GenerateStream(ctx context.Context, messages []entities.ChatMessage) (<-chan ports.StreamToken, error) {
	m.lastMsgs = messages
	if m.startErr != nil {
		return nil, m.startErr
	}
	ch := make(chan ports.StreamToken)
	go func() {
		defer close(ch)
		for _, t := range m.tokens {
			select {
			case ch <- ports.StreamToken{Content: t}:
			case <-ctx.Done():
				return
			}
		}
		if m.block {
			<-ctx.Done()
			return
		}
		if m.streamErr != nil {
			ch <- ports.StreamToken{Done: true, Error: m.streamErr}
			return
		}
		ch <- ports.StreamToken{Done: true}
	}()
	return ch, nil
}

// memoryConversations implements ports.ConversationRepository for testing
type memoryConversations struct {
	mu    sync.Mutex
	items map[string]entities.Conversation
	seq   int
}

func newMemoryConversations() *memoryConversations {
	return &memoryConversations{items: map[string]entities.Conversation{}}
}

func (m *memoryConversations) Create(ctx context.Context, c *entities.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	c.ID = fmt.Sprintf("conv-%d", m.seq)
	c.CreatedAt = time.Now().Add(time.Duration(m.seq) * time.Millisecond)
	m.items[c.ID] = *c
	return nil
}

func (m *memoryConversations) Get(ctx context.Context, id string) (*entities.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return nil, entities.ErrNotFound
	}
	return &c, nil
}

func (m *memoryConversations) ListByUser(ctx context.Context, userID string) ([]entities.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Conversation
	for _, c := range m.items {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// memoryMessages implements ports.MessageRepository for testing
type memoryMessages struct {
	mu    sync.Mutex
	items []entities.Message
	err   error
}

func (m *memoryMessages) Append(ctx context.Context, msg *entities.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	msg.ID = fmt.Sprintf("msg-%d", len(m.items)+1)
	msg.CreatedAt = time.Now()
	m.items = append(m.items, *msg)
	return nil
}

func (m *memoryMessages) ListByConversation(ctx context.Context, conversationID string) ([]entities.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Message
	for _, msg := range m.items {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memoryMessages) all() []entities.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.Message(nil), m.items...)
}

// memoryUsers implements ports.UserRepository for testing
type memoryUsers struct {
	mu    sync.Mutex
	items map[string]entities.User
}

func (m *memoryUsers) Create(ctx context.Context, u *entities.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = map[string]entities.User{}
	}
	u.ID = fmt.Sprintf("user-%d", len(m.items)+1)
	m.items[u.ID] = *u
	return nil
}

func (m *memoryUsers) GetByID(ctx context.Context, id string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.items[id]
	if !ok {
		return nil, entities.ErrNotFound
	}
	return &u, nil
}

func (m *memoryUsers) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.items {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, entities.ErrNotFound
}

// plainHasher stores passwords with a prefix
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }

func (plainHasher) Compare(hash, p string) error {
	if hash != "hashed:"+p {
		return errors.New("mismatch")
	}
	return nil
}

// prefixTokens issues "tok-<id>" tokens
type prefixTokens struct{}

func (prefixTokens) Issue(id string) (string, error) { return "tok-" + id, nil }

func (prefixTokens) Verify(tok string) (string, error) {
	if len(tok) < 5 || tok[:4] != "tok-" {
		return "", errors.New("bad token")
	}
	return tok[4:], nil
}
