// Package llm provides chat model adapters implementing ports.LLMService.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

var _ ports.LLMService = (*OllamaLLMAdapter)(nil)

// OllamaLLMAdapter implements ports.LLMService using Ollama's chat API.
type OllamaLLMAdapter struct {
	baseURL     string
	model       string
	temperature float32
	client      *http.Client
}

// NewOllamaLLMAdapter creates a new Ollama LLM adapter.
func NewOllamaLLMAdapter(baseURL, model string, temperature float32) *OllamaLLMAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaLLMAdapter{
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		client: &http.Client{
			Timeout: 300 * time.Second, // Longer timeout for streaming
		},
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

func (a *OllamaLLMAdapter) newRequest(ctx context.Context, messages []entities.ChatMessage, stream bool) (*http.Request, error) {
	body := ollamaChatRequest{
		Model:    a.model,
		Messages: make([]ollamaMessage, len(messages)),
		Stream:   stream,
		Options:  map[string]any{"temperature": a.temperature},
	}
	for i, m := range messages {
		body.Messages[i] = ollamaMessage{Role: m.Role, Content: m.Content}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Generate produces the full response.
func (a *OllamaLLMAdapter) Generate(ctx context.Context, messages []entities.ChatMessage) (string, error) {
	req, err := a.newRequest(ctx, messages, false)
	if err != nil {
		return "", err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: calling Ollama: %v", entities.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: Ollama returned status %d", entities.ErrUpstream, resp.StatusCode)
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return chatResp.Message.Content, nil
}

// GenerateStream streams newline-delimited JSON chunks from Ollama.
func (a *OllamaLLMAdapter) GenerateStream(ctx context.Context, messages []entities.ChatMessage) (<-chan ports.StreamToken, error) {
	req, err := a.newRequest(ctx, messages, true)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling Ollama: %v", entities.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: Ollama returned status %d", entities.ErrUpstream, resp.StatusCode)
	}

	ch := make(chan ports.StreamToken, 100)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		send := func(tok ports.StreamToken) bool {
			select {
			case ch <- tok:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue // Skip malformed lines
			}
			if chunk.Error != "" {
				send(ports.StreamToken{Done: true, Error: fmt.Errorf("%w: %s", entities.ErrUpstream, chunk.Error)})
				return
			}
			if !send(ports.StreamToken{Content: chunk.Message.Content, Done: chunk.Done}) || chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			send(ports.StreamToken{Done: true, Error: err})
			return
		}
		send(ports.StreamToken{Done: true})
	}()

	return ch, nil
}
