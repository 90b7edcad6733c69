package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
)

func env(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv(env(nil))

	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.Equal(t, "qdrant", cfg.VectorStore)
	assert.Equal(t, "default", cfg.QdrantCollection)
	assert.Equal(t, 2, cfg.TopK)
	assert.Equal(t, 1024, cfg.ChunkSize)
	assert.Equal(t, 20, cfg.ChunkOverlap)
	assert.Equal(t, 3900, cfg.MemoryTokenLimit)
	assert.Equal(t, 2*time.Minute, cfg.StreamTimeout)
	assert.Equal(t, 30*time.Minute, cfg.JWTExpire)
	assert.Equal(t, "storage/app.db", cfg.DatabasePath)
	assert.False(t, cfg.WatchDataDir)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg := FromEnv(env(map[string]string{
		"APP_PORT":          "9000",
		"VECTOR_STORE":      "SQLite",
		"SIMILARITY_CUTOFF": "0.3",
		"STORAGE_DIR":       "/var/rag",
		"WATCH_DATA_DIR":    "true",
		"TOP_K":             "not-a-number",
	}))

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "sqlite", cfg.VectorStore)
	assert.InDelta(t, 0.3, cfg.SimilarityCutoff, 1e-9)
	assert.Equal(t, "/var/rag/app.db", cfg.DatabasePath)
	assert.True(t, cfg.WatchDataDir)
	assert.Equal(t, 2, cfg.TopK)
}

func TestValidate(t *testing.T) {
	valid := FromEnv(env(map[string]string{"OPENAI_API_KEY": "sk", "JWT_SECRET_KEY": "s"}))
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.JWTSecret = "" }},
		{"empty collection", func(c *Config) { c.QdrantCollection = "" }},
		{"unknown store", func(c *Config) { c.VectorStore = "faiss" }},
		{"unknown provider", func(c *Config) { c.LLMProvider = "claude" }},
		{"missing key", func(c *Config) { c.OpenAIAPIKey = "" }},
		{"bad port", func(c *Config) { c.Port = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.True(t, errors.Is(cfg.Validate(), entities.ErrConfig))
		})
	}
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := FromEnv(env(map[string]string{"OPENAI_API_KEY": "sk-live", "JWT_SECRET_KEY": "topsecret"}))
	s := cfg.String()
	assert.NotContains(t, s, "sk-live")
	assert.NotContains(t, s, "topsecret")
	assert.Contains(t, s, "***")
}
