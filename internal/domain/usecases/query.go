package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

// DefaultSystemPrompt constrains answers to the retrieved context.
const DefaultSystemPrompt = `You are an assistant that answers questions using only the documents provided in the context.
If the answer is not contained in the context, say clearly that the information was not found in the documents.
Do not make up facts. Answer in the language of the question.`

// ChatConfig holds the retrieval and memory settings of the chat engine.
type ChatConfig struct {
	TopK             int
	SimilarityCutoff float64
	MemoryTokenLimit int
	SystemPrompt     string
}

// ChatStream is an in-flight streamed answer together with the sources it
// was grounded on, ranked by descending score.
type ChatStream struct {
	Tokens  <-chan ports.StreamToken
	Sources []entities.QueryResult
}

// QueryUseCase retrieves context and generates answers.
type QueryUseCase struct {
	embedder    ports.EmbeddingService
	vectorStore ports.VectorStore
	llm         ports.LLMService
	cfg         ChatConfig
}

// NewQueryUseCase creates a QueryUseCase with injected dependencies.
func NewQueryUseCase(
	embedder ports.EmbeddingService,
	vectorStore ports.VectorStore,
	llm ports.LLMService,
	cfg ChatConfig,
) *QueryUseCase {
	if cfg.TopK <= 0 {
		cfg.TopK = 2
	}
	if cfg.MemoryTokenLimit <= 0 {
		cfg.MemoryTokenLimit = DefaultMemoryTokenLimit
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	return &QueryUseCase{
		embedder:    embedder,
		vectorStore: vectorStore,
		llm:         llm,
		cfg:         cfg,
	}
}

// Query answers synchronously.
func (uc *QueryUseCase) Query(ctx context.Context, req *entities.ChatRequest) (*entities.ChatResponse, error) {
	results, err := uc.Search(ctx, req.Query, req.Filter)
	if err != nil {
		return nil, err
	}

	answer, err := uc.llm.Generate(ctx, uc.buildMessages(req, results))
	if err != nil {
		return nil, fmt.Errorf("%w: generating response: %v", entities.ErrUpstream, err)
	}

	return &entities.ChatResponse{
		Answer:  answer,
		Sources: results,
	}, nil
}

// Stream starts a streamed answer. Provider errors raised before the first
// token are returned; later ones arrive on the token channel.
func (uc *QueryUseCase) Stream(ctx context.Context, req *entities.ChatRequest) (*ChatStream, error) {
	results, err := uc.Search(ctx, req.Query, req.Filter)
	if err != nil {
		return nil, err
	}

	tokens, err := uc.llm.GenerateStream(ctx, uc.buildMessages(req, results))
	if err != nil {
		return nil, fmt.Errorf("%w: starting stream: %v", entities.ErrUpstream, err)
	}
	return &ChatStream{Tokens: tokens, Sources: results}, nil
}

// Search retrieves the top chunks above the similarity cutoff. An empty
// result is not an error.
func (uc *QueryUseCase) Search(ctx context.Context, query string, filter *entities.SearchFilter) ([]entities.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", entities.ErrValidation)
	}

	embedding, err := uc.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", entities.ErrUpstream, err)
	}

	results, err := uc.vectorStore.Query(ctx, embedding, entities.SearchOptions{
		TopK:      uc.cfg.TopK,
		Threshold: uc.cfg.SimilarityCutoff,
		Filter:    filter,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: searching vectors: %v", entities.ErrUpstream, err)
	}

	kept := results[:0]
	for _, r := range results {
		if uc.cfg.SimilarityCutoff <= 0 || r.Score >= uc.cfg.SimilarityCutoff {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// buildMessages assembles system instruction, context, trimmed memory and the query.
func (uc *QueryUseCase) buildMessages(req *entities.ChatRequest, results []entities.QueryResult) []entities.ChatMessage {
	var sb strings.Builder
	sb.WriteString(uc.cfg.SystemPrompt)
	sb.WriteString("\n\nContext information is below.\n---------------------\n")
	if len(results) == 0 {
		sb.WriteString("(no relevant documents found)")
	}
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Source: %s]\n%s", r.SourceDoc, r.Chunk.Content)
	}
	sb.WriteString("\n---------------------")

	history := TrimHistory(req.History, uc.cfg.MemoryTokenLimit)
	messages := make([]entities.ChatMessage, 0, len(history)+2)
	messages = append(messages, entities.ChatMessage{Role: entities.RoleSystem, Content: sb.String()})
	messages = append(messages, history...)
	messages = append(messages, entities.ChatMessage{Role: entities.RoleUser, Content: req.Query})
	return messages
}
