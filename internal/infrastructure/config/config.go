// Package config loads server settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
)

// Config holds every runtime setting.
type Config struct {
	Host string
	Port int

	DataDir      string // uploaded and watched documents
	StorageDir   string // document store and local vector files
	DatabasePath string // users, conversations and messages
	FrontendDir  string

	VectorStore      string // qdrant, sqlite or memory
	QdrantURL        string
	QdrantCollection string
	QdrantAPIKey     string

	EmbeddingProvider string // openai or ollama
	EmbeddingModel    string
	EmbeddingDim      int
	EmbedRPS          float64

	LLMProvider    string // openai or ollama
	Model          string
	LLMTemperature float32
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OllamaURL      string

	TopK             int
	SimilarityCutoff float64
	ChunkSize        int
	ChunkOverlap     int
	MemoryTokenLimit int
	StreamTimeout    time.Duration

	JWTSecret    string
	JWTExpire    time.Duration
	LoadersPath  string
	PDFService   string
	WatchDataDir bool
	Verbose      bool
}

// Addr returns host:port.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads .env (if present) and the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[cfg] error loading .env: %v", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, applying defaults.
func FromEnv(getenv func(string) string) Config {
	get := func(k, def string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return def
	}
	getInt := func(k string, def int) int {
		if n, err := strconv.Atoi(get(k, "")); err == nil {
			return n
		}
		return def
	}
	getFloat := func(k string, def float64) float64 {
		if f, err := strconv.ParseFloat(get(k, ""), 64); err == nil {
			return f
		}
		return def
	}
	getBool := func(k string, def bool) bool {
		if b, err := strconv.ParseBool(get(k, "")); err == nil {
			return b
		}
		return def
	}

	storage := get("STORAGE_DIR", "storage")
	cfg := Config{
		Host:         get("APP_HOST", "0.0.0.0"),
		Port:         getInt("APP_PORT", 8000),
		DataDir:      get("DATA_DIR", "data"),
		StorageDir:   storage,
		DatabasePath: get("DATABASE_PATH", filepath.Join(storage, "app.db")),
		FrontendDir:  get("FRONTEND_DIR", ""),

		VectorStore:      strings.ToLower(get("VECTOR_STORE", "qdrant")),
		QdrantURL:        get("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: get("QDRANT_COLLECTION", "default"),
		QdrantAPIKey:     get("QDRANT_API_KEY", ""),

		EmbeddingProvider: strings.ToLower(get("EMBEDDING_PROVIDER", "openai")),
		EmbeddingModel:    get("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDim:      getInt("EMBEDDING_DIM", 1536),
		EmbedRPS:          getFloat("EMBED_RPS", 5),

		LLMProvider:    strings.ToLower(get("LLM_PROVIDER", "openai")),
		Model:          get("MODEL", "gpt-4o-mini"),
		LLMTemperature: float32(getFloat("LLM_TEMPERATURE", 0.1)),
		OpenAIAPIKey:   get("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  get("OPENAI_BASE_URL", ""),
		OllamaURL:      get("OLLAMA_URL", "http://localhost:11434"),

		TopK:             getInt("TOP_K", 2),
		SimilarityCutoff: getFloat("SIMILARITY_CUTOFF", 0),
		ChunkSize:        getInt("CHUNK_SIZE", 1024),
		ChunkOverlap:     getInt("CHUNK_OVERLAP", 20),
		MemoryTokenLimit: getInt("MEMORY_TOKEN_LIMIT", 3900),
		StreamTimeout:    time.Duration(getInt("STREAM_TIMEOUT", 120)) * time.Second,

		JWTSecret:    get("JWT_SECRET_KEY", ""),
		JWTExpire:    time.Duration(getInt("JWT_EXPIRE_MINUTES", 30)) * time.Minute,
		LoadersPath:  get("LOADERS_CONFIG", filepath.Join("config", "loaders.yaml")),
		PDFService:   get("PDF_SERVICE_URL", "http://localhost:8081"),
		WatchDataDir: getBool("WATCH_DATA_DIR", false),
		Verbose:      getBool("VERBOSE", false),
	}
	log.Printf("[cfg] %s", cfg)
	return cfg
}

// String renders the config with secrets masked.
func (c Config) String() string {
	masked := c
	masked.OpenAIAPIKey = mask(c.OpenAIAPIKey)
	masked.QdrantAPIKey = mask(c.QdrantAPIKey)
	masked.JWTSecret = mask(c.JWTSecret)
	type plain Config
	return fmt.Sprintf("%+v", plain(masked))
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	var problems []string
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("APP_PORT %d out of range", c.Port))
	}
	switch c.VectorStore {
	case "qdrant":
		if c.QdrantURL == "" || c.QdrantCollection == "" {
			problems = append(problems, "QDRANT_URL and QDRANT_COLLECTION are required")
		}
	case "sqlite", "memory":
	default:
		problems = append(problems, fmt.Sprintf("unknown VECTOR_STORE %q", c.VectorStore))
	}
	for name, p := range map[string]string{"EMBEDDING_PROVIDER": c.EmbeddingProvider, "LLM_PROVIDER": c.LLMProvider} {
		switch p {
		case "openai", "ollama":
		default:
			problems = append(problems, fmt.Sprintf("unknown %s %q", name, p))
		}
	}
	if (c.EmbeddingProvider == "openai" || c.LLMProvider == "openai") && c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
		problems = append(problems, "OPENAI_API_KEY is required for the openai provider")
	}
	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET_KEY is required")
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 {
		problems = append(problems, "CHUNK_SIZE must be positive and CHUNK_OVERLAP non-negative")
	}
	if c.TopK <= 0 {
		problems = append(problems, "TOP_K must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", entities.ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}
