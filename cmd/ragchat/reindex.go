package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/ragchat/internal/domain/usecases"
	"github.com/0xcro3dile/ragchat/internal/infrastructure/config"
)

var reindexSync bool

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the index from every configured source",
	Long: `Loads every source listed in the loaders config (files, web pages,
database queries) and indexes it.

By default the collection is dropped and rebuilt. With --sync the collection
is kept: unchanged chunks are skipped and chunks no longer produced by any
source are deleted.`,
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexSync, "sync", false, "update in place instead of recreating the collection")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.loadSources(ctx)
	if err != nil {
		return fmt.Errorf("loading sources: %w", err)
	}

	mode := usecases.ModeRecreate
	if reindexSync {
		mode = usecases.ModeSync
	}
	cmd.Printf("Indexing %d documents (%s)...\n", len(docs), mode)

	report, err := a.ingest.TryReindex(ctx, docs, mode)
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	cmd.Printf("Done in %v: %d chunks, %d inserted, %d updated, %d unchanged, %d deleted. Points %d -> %d.\n",
		report.Duration.Round(time.Millisecond), report.Chunks, report.Inserted, report.Updated,
		report.Skipped, report.Deleted, report.Before.PointCount, report.After.PointCount)
	return nil
}
