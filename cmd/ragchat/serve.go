package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/ragchat/internal/adapters/filewatcher"
	"github.com/0xcro3dile/ragchat/internal/adapters/loader"
	"github.com/0xcro3dile/ragchat/internal/adapters/repository"
	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
	"github.com/0xcro3dile/ragchat/internal/domain/usecases"
	"github.com/0xcro3dile/ragchat/internal/infrastructure/config"
	httpserver "github.com/0xcro3dile/ragchat/internal/infrastructure/http"
	"github.com/0xcro3dile/ragchat/internal/infrastructure/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	stack, err := a.newChatStack()
	if err != nil {
		return err
	}
	if !a.pdf.Healthy(ctx) {
		logger.Warnf("PDF extraction service at %s is not reachable; PDF files will fail to index", cfg.PDFService)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	if cfg.WatchDataDir {
		w, err := filewatcher.NewFSNotifyWatcher(loader.SupportedExtensions)
		if err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer w.Stop()
		events, err := w.Watch(ctx, cfg.DataDir)
		if err != nil {
			return fmt.Errorf("watching %s: %w", cfg.DataDir, err)
		}
		go autoIngest(ctx, a.ingest, events)
		logger.Infof("Watching %s for changes", cfg.DataDir)
	}

	server := httpserver.NewServer(httpserver.Deps{
		Auth:        stack.auth,
		Chat:        stack.chat,
		Indexer:     a.ingest,
		VectorStore: a.vectorStore,
		DocStore:    a.docStore,
		PingDB:      func(ctx context.Context) error { return repository.Ping(ctx, stack.db) },
	}, httpserver.Options{
		Addr:        cfg.Addr(),
		DataDir:     cfg.DataDir,
		FrontendDir: cfg.FrontendDir,
	})
	return server.Start(ctx)
}

// autoIngest keeps the index in step with the watched directory.
func autoIngest(ctx context.Context, ingest *usecases.IngestUseCase, events <-chan ports.FileEvent) {
	for ev := range events {
		switch ev.Operation {
		case ports.FileCreated, ports.FileModified:
			if _, err := ingest.IngestFile(ctx, ev.Path); err != nil {
				if errors.Is(err, entities.ErrNotFound) {
					continue // removed again before we got to it
				}
				logger.Errorf("Auto-ingest %s: %v", ev.Path, err)
				continue
			}
			logger.Infof("Auto-ingested %s", ev.Path)
		case ports.FileDeleted:
			n, err := ingest.RemoveFile(ctx, ev.Path)
			if err != nil {
				logger.Errorf("Removing %s from index: %v", ev.Path, err)
				continue
			}
			logger.Infof("Removed %s from index (%d chunks)", ev.Path, n)
		}
	}
}
