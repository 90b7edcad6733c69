package parser

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
)

func TestPDFServiceParser_Parse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/parse", r.URL.Path)
		assert.Equal(t, "manual.pdf", r.Header.Get("X-Filename"))
		json.NewEncoder(w).Encode(map[string]any{"text": "Hello from PDF", "pages": 1})
	}))
	defer server.Close()

	text, err := NewPDFServiceParser(server.URL).Parse(context.Background(), []byte("%PDF"), "manual.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Hello from PDF", text)
}

func TestPDFServiceParser_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"service error", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"error": "encrypted"})
		}},
		{"bad status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewPDFServiceParser(server.URL).Parse(context.Background(), []byte("x"), "a.pdf")
			assert.True(t, errors.Is(err, entities.ErrUpstream), "got %v", err)
		})
	}
}

func TestPDFServiceParser_Unreachable(t *testing.T) {
	p := NewPDFServiceParser("http://127.0.0.1:1")
	_, err := p.Parse(context.Background(), []byte("x"), "a.pdf")
	assert.True(t, errors.Is(err, entities.ErrUpstream))
	assert.False(t, p.Healthy(context.Background()))
}

func TestPDFServiceParser_Defaults(t *testing.T) {
	p := NewPDFServiceParser("")
	assert.Equal(t, "http://localhost:8081", p.serviceURL)
	assert.Equal(t, []string{".pdf"}, p.SupportedFormats())
}

func TestPDFServiceParser_Healthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	assert.True(t, NewPDFServiceParser(server.URL).Healthy(context.Background()))
}
