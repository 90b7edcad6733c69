package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
)

func hit(file, text string, score float64) entities.QueryResult {
	return entities.QueryResult{
		Chunk: entities.Chunk{
			Content:  text,
			Metadata: map[string]string{entities.MetaSource: "/data/" + file, entities.MetaFileName: file},
		},
		Score:     score,
		SourceDoc: file,
	}
}

func TestQueryUseCase_ReturnsAnswer(t *testing.T) {
	store := newMockVectorStore()
	store.results = []entities.QueryResult{hit("doc1.pdf", "relevant context", 0.8)}
	llm := &mockLLM{response: "The answer is here"}
	uc := NewQueryUseCase(&mockEmbedder{}, store, llm, ChatConfig{})

	resp, err := uc.Query(context.Background(), &entities.ChatRequest{Query: "what is this?"})
	require.NoError(t, err)
	assert.Equal(t, "The answer is here", resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, 2, store.lastOpts.TopK)
}

func TestQueryUseCase_PromptCarriesContextAndInstruction(t *testing.T) {
	store := newMockVectorStore()
	store.results = []entities.QueryResult{hit("guide.md", "the sky is green here", 0.9)}
	llm := &mockLLM{}
	uc := NewQueryUseCase(&mockEmbedder{}, store, llm, ChatConfig{})

	_, err := uc.Query(context.Background(), &entities.ChatRequest{
		Query:   "what colour is the sky?",
		History: []entities.ChatMessage{{Role: entities.RoleUser, Content: "hi"}, {Role: entities.RoleAssistant, Content: "hello"}},
	})
	require.NoError(t, err)

	require.Len(t, llm.lastMsgs, 4)
	system := llm.lastMsgs[0]
	assert.Equal(t, entities.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "not found")
	assert.Contains(t, system.Content, "[Source: guide.md]")
	assert.Contains(t, system.Content, "the sky is green here")
	assert.Equal(t, "hi", llm.lastMsgs[1].Content)
	assert.Equal(t, "what colour is the sky?", llm.lastMsgs[3].Content)
}

func TestQueryUseCase_CutoffExcludesWeakHits(t *testing.T) {
	store := newMockVectorStore()
	store.results = []entities.QueryResult{hit("a.txt", "strong", 0.7), hit("b.txt", "weak", 0.2)}
	uc := NewQueryUseCase(&mockEmbedder{}, store, &mockLLM{}, ChatConfig{SimilarityCutoff: 0.5})

	results, err := uc.Search(context.Background(), "q", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.txt", results[0].SourceDoc)
	assert.Equal(t, 0.5, store.lastOpts.Threshold)
}

func TestQueryUseCase_NoHitsIsNotAnError(t *testing.T) {
	store := newMockVectorStore()
	store.results = []entities.QueryResult{}
	llm := &mockLLM{response: "not found in the documents"}
	uc := NewQueryUseCase(&mockEmbedder{}, store, llm, ChatConfig{})

	resp, err := uc.Query(context.Background(), &entities.ChatRequest{Query: "unknown topic"})
	require.NoError(t, err)
	assert.Empty(t, resp.Sources)
	assert.Contains(t, llm.lastMsgs[0].Content, "no relevant documents")
}

func TestQueryUseCase_FilterPassedThrough(t *testing.T) {
	store := newMockVectorStore()
	uc := NewQueryUseCase(&mockEmbedder{}, store, &mockLLM{}, ChatConfig{TopK: 1})
	filter := &entities.SearchFilter{DocIDs: []string{"d1", "d2"}}

	_, err := uc.Search(context.Background(), "q", filter)
	require.NoError(t, err)
	assert.Equal(t, filter, store.lastOpts.Filter)
	assert.Equal(t, 1, store.lastOpts.TopK)
}

func TestQueryUseCase_ProviderErrorsSurface(t *testing.T) {
	uc := NewQueryUseCase(&mockEmbedder{err: errors.New("boom")}, newMockVectorStore(), &mockLLM{}, ChatConfig{})
	_, err := uc.Query(context.Background(), &entities.ChatRequest{Query: "q"})
	assert.True(t, errors.Is(err, entities.ErrUpstream))

	uc = NewQueryUseCase(&mockEmbedder{}, newMockVectorStore(), &mockLLM{startErr: errors.New("quota")}, ChatConfig{})
	_, err = uc.Stream(context.Background(), &entities.ChatRequest{Query: "q"})
	assert.True(t, errors.Is(err, entities.ErrUpstream))
}

func TestQueryUseCase_EmptyQuery(t *testing.T) {
	uc := NewQueryUseCase(&mockEmbedder{}, newMockVectorStore(), &mockLLM{}, ChatConfig{})
	_, err := uc.Search(context.Background(), "   ", nil)
	assert.True(t, errors.Is(err, entities.ErrValidation))
}

func TestTrimHistory_DropsOldestFirst(t *testing.T) {
	history := []entities.ChatMessage{
		{Role: entities.RoleUser, Content: strings.Repeat("a", 40)},      // 10 tokens
		{Role: entities.RoleAssistant, Content: strings.Repeat("b", 40)}, // 10 tokens
		{Role: entities.RoleUser, Content: strings.Repeat("c", 40)},      // 10 tokens
	}

	got := TrimHistory(history, 25)
	require.Len(t, got, 2)
	assert.Equal(t, history[1], got[0])
	assert.Equal(t, history[2], got[1])

	assert.Len(t, TrimHistory(history, 1000), 3)
	assert.Empty(t, TrimHistory(history, 5))
}
