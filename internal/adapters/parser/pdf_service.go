// Package parser provides document parsing adapters.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

const maxResponseBytes = 64 << 20

var _ ports.DocumentParser = (*PDFServiceParser)(nil)

// PDFServiceParser extracts PDF text through an external extraction service
// exposing POST /parse and GET /health.
type PDFServiceParser struct {
	serviceURL string
	client     *http.Client
}

// NewPDFServiceParser creates a parser for the service at serviceURL.
func NewPDFServiceParser(serviceURL string) *PDFServiceParser {
	if serviceURL == "" {
		serviceURL = "http://localhost:8081"
	}
	return &PDFServiceParser{
		serviceURL: serviceURL,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

type parseResponse struct {
	Text  string `json:"text"`
	Pages int    `json:"pages"`
	Error string `json:"error,omitempty"`
}

// Parse sends the raw PDF bytes to the service and returns the extracted text.
func (p *PDFServiceParser) Parse(ctx context.Context, data []byte, filename string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serviceURL+"/parse", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("X-Filename", filename)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: calling PDF service: %v", entities.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: reading PDF service response: %v", entities.ErrUpstream, err)
	}

	var result parseResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("%w: PDF service status %d", entities.ErrUpstream, resp.StatusCode)
		}
		return "", fmt.Errorf("%w: decoding PDF service response: %v", entities.ErrUpstream, err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("%w: parsing %s: %s", entities.ErrUpstream, filename, result.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: PDF service status %d", entities.ErrUpstream, resp.StatusCode)
	}
	return result.Text, nil
}

// SupportedFormats returns the extensions this parser handles.
func (p *PDFServiceParser) SupportedFormats() []string {
	return []string{".pdf"}
}

// Healthy reports whether the extraction service answers its health check.
func (p *PDFServiceParser) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serviceURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
