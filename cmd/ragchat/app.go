package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gorm.io/gorm"

	"github.com/0xcro3dile/ragchat/internal/adapters/auth"
	"github.com/0xcro3dile/ragchat/internal/adapters/docstore"
	"github.com/0xcro3dile/ragchat/internal/adapters/embedding"
	"github.com/0xcro3dile/ragchat/internal/adapters/llm"
	"github.com/0xcro3dile/ragchat/internal/adapters/loader"
	"github.com/0xcro3dile/ragchat/internal/adapters/parser"
	"github.com/0xcro3dile/ragchat/internal/adapters/repository"
	"github.com/0xcro3dile/ragchat/internal/adapters/vectordb"
	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
	"github.com/0xcro3dile/ragchat/internal/domain/usecases"
	"github.com/0xcro3dile/ragchat/internal/infrastructure/config"
	"github.com/0xcro3dile/ragchat/internal/infrastructure/logger"
)

// app holds the wired components shared by every command.
type app struct {
	cfg         config.Config
	vectorStore ports.VectorStore
	docStore    ports.DocumentStore
	embedder    ports.EmbeddingService
	files       *loader.FileLoader
	pdf         *parser.PDFServiceParser
	ingest      *usecases.IngestUseCase

	closers []io.Closer
}

// newApp builds the indexing side: stores, embedder, loaders and pipeline.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	if cfg.Verbose {
		logger.SetVerbose(true)
	}
	a := &app{cfg: cfg}

	if err := os.MkdirAll(cfg.StorageDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}

	vs, err := a.openVectorStore()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.vectorStore = vs
	if err := vs.EnsureCollection(ctx, false); err != nil {
		a.Close()
		return nil, fmt.Errorf("preparing collection: %w", err)
	}

	ds, err := docstore.NewSQLiteStore(cfg.StorageDir)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.docStore = ds
	a.closers = append(a.closers, ds)

	if a.embedder, err = a.newEmbedder(); err != nil {
		a.Close()
		return nil, err
	}

	a.pdf = parser.NewPDFServiceParser(cfg.PDFService)
	a.files = loader.NewFileLoader(a.pdf)
	a.ingest = usecases.NewIngestUseCase(a.embedder, a.vectorStore, a.docStore, a.files, usecases.IngestConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	})
	return a, nil
}

func (a *app) openVectorStore() (ports.VectorStore, error) {
	switch a.cfg.VectorStore {
	case "qdrant":
		s, err := vectordb.NewQdrantStore(vectordb.QdrantConfig{
			URL:        a.cfg.QdrantURL,
			APIKey:     a.cfg.QdrantAPIKey,
			Collection: a.cfg.QdrantCollection,
			Dimension:  uint64(a.cfg.EmbeddingDim),
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		return s, nil
	case "sqlite":
		s, err := vectordb.NewSQLiteStore(a.cfg.StorageDir, a.cfg.QdrantCollection)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		return s, nil
	case "memory":
		return vectordb.NewInMemoryStore(a.cfg.QdrantCollection), nil
	}
	return nil, fmt.Errorf("%w: unknown vector store %q", entities.ErrConfig, a.cfg.VectorStore)
}

func (a *app) newEmbedder() (ports.EmbeddingService, error) {
	if a.cfg.EmbeddingProvider == "ollama" {
		return embedding.NewOllamaAdapter(a.cfg.OllamaURL, a.cfg.EmbeddingModel), nil
	}
	return embedding.NewOpenAIAdapter(embedding.OpenAIConfig{
		APIKey:  a.cfg.OpenAIAPIKey,
		BaseURL: a.cfg.OpenAIBaseURL,
		Model:   a.cfg.EmbeddingModel,
		RPS:     a.cfg.EmbedRPS,
	})
}

func (a *app) newLLM() (ports.LLMService, error) {
	if a.cfg.LLMProvider == "ollama" {
		return llm.NewOllamaLLMAdapter(a.cfg.OllamaURL, a.cfg.Model, a.cfg.LLMTemperature), nil
	}
	return llm.NewOpenAIAdapter(llm.OpenAIConfig{
		APIKey:      a.cfg.OpenAIAPIKey,
		BaseURL:     a.cfg.OpenAIBaseURL,
		Model:       a.cfg.Model,
		Temperature: a.cfg.LLMTemperature,
	})
}

// loadSources reads every configured loader source.
func (a *app) loadSources(ctx context.Context) ([]*entities.Document, error) {
	sources, err := loader.LoadConfig(a.cfg.LoadersPath, a.cfg.DataDir)
	if err != nil {
		return nil, err
	}
	loaders := &loader.Loaders{
		Files: a.files,
		Web:   loader.NewWebLoader(a.cfg.EmbedRPS),
		DB:    loader.NewDBLoader(),
	}
	return loaders.LoadAll(ctx, sources)
}

// chatStack is the request-serving side: accounts, conversations and chat.
type chatStack struct {
	db   *gorm.DB
	auth *usecases.AuthUseCase
	chat *usecases.ChatUseCase
}

func (a *app) newChatStack() (*chatStack, error) {
	db, err := repository.Open(a.cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB)
	}

	tokens, err := auth.NewJWTService(a.cfg.JWTSecret, a.cfg.JWTExpire)
	if err != nil {
		return nil, err
	}
	model, err := a.newLLM()
	if err != nil {
		return nil, err
	}

	query := usecases.NewQueryUseCase(a.embedder, a.vectorStore, model, usecases.ChatConfig{
		TopK:             a.cfg.TopK,
		SimilarityCutoff: a.cfg.SimilarityCutoff,
		MemoryTokenLimit: a.cfg.MemoryTokenLimit,
	})
	assembler := usecases.NewAssembler(usecases.AssemblerConfig{Timeout: a.cfg.StreamTimeout})

	return &chatStack{
		db:   db,
		auth: usecases.NewAuthUseCase(repository.NewUserRepo(db), auth.BcryptHasher{}, tokens),
		chat: usecases.NewChatUseCase(query, assembler, repository.NewConversationRepo(db), repository.NewMessageRepo(db)),
	}, nil
}

// Close releases stores in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
