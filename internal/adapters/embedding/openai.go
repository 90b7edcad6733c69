package embedding

import (
	"context"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

var _ ports.EmbeddingService = (*OpenAIAdapter)(nil)

// OpenAIConfig configures the OpenAI embedding adapter.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string // optional, for OpenAI-compatible servers
	Model     string
	BatchSize int     // texts per request
	RPS       float64 // requests per second, zero means unlimited
}

// OpenAIAdapter implements ports.EmbeddingService with the OpenAI embeddings API.
type OpenAIAdapter struct {
	client    *openai.Client
	model     string
	batchSize int
	limiter   *rate.Limiter
}

// NewOpenAIAdapter creates an OpenAI embedding adapter.
func NewOpenAIAdapter(cfg OpenAIConfig) (*OpenAIAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", entities.ErrConfig)
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}

	return &OpenAIAdapter{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		limiter:   limiter,
	}, nil
}

// Embed generates an embedding for a single text.
func (a *OpenAIAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := a.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in request-sized batches, preserving order.
func (a *OpenAIAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += a.batchSize {
		end := start + a.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(a.model),
			Input: texts[start:end],
		})
		if err != nil {
			return nil, fmt.Errorf("%w: openai embeddings: %v", entities.ErrUpstream, err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("%w: openai returned %d embeddings for %d inputs", entities.ErrUpstream, len(resp.Data), end-start)
		}

		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= end-start {
				return nil, fmt.Errorf("%w: embedding index %d out of range", entities.ErrUpstream, d.Index)
			}
			v := make([]float32, len(d.Embedding))
			for i := range d.Embedding {
				v[i] = float32(d.Embedding[i])
			}
			l2normalize(v)
			embeddings[start+d.Index] = v
		}
	}
	return embeddings, nil
}

// l2normalize normalizes a vector to unit length
func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
