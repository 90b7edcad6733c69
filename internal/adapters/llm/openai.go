package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

var _ ports.LLMService = (*OpenAIAdapter)(nil)

// OpenAIConfig configures the OpenAI chat adapter.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
}

// OpenAIAdapter implements ports.LLMService with OpenAI chat completions.
type OpenAIAdapter struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIAdapter creates an OpenAI chat adapter.
func NewOpenAIAdapter(cfg OpenAIConfig) (*OpenAIAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", entities.ErrConfig)
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIAdapter{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

func (a *OpenAIAdapter) request(messages []entities.ChatMessage, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    msgs,
		Temperature: a.temperature,
		Stream:      stream,
	}
}

// Generate produces the full response.
func (a *OpenAIAdapter) Generate(ctx context.Context, messages []entities.ChatMessage) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, a.request(messages, false))
	if err != nil {
		return "", fmt.Errorf("%w: openai chat: %v", entities.ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", entities.ErrUpstream)
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream streams completion deltas.
func (a *OpenAIAdapter) GenerateStream(ctx context.Context, messages []entities.ChatMessage) (<-chan ports.StreamToken, error) {
	stream, err := a.client.CreateChatCompletionStream(ctx, a.request(messages, true))
	if err != nil {
		return nil, fmt.Errorf("%w: openai stream: %v", entities.ErrUpstream, err)
	}

	ch := make(chan ports.StreamToken, 100)
	go func() {
		defer close(ch)
		defer stream.Close()

		send := func(tok ports.StreamToken) bool {
			select {
			case ch <- tok:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				send(ports.StreamToken{Done: true})
				return
			}
			if err != nil {
				send(ports.StreamToken{Done: true, Error: fmt.Errorf("%w: openai stream: %v", entities.ErrUpstream, err)})
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			if !send(ports.StreamToken{Content: resp.Choices[0].Delta.Content}) {
				return
			}
		}
	}()
	return ch, nil
}
