package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/ragchat/internal/infrastructure/config"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Index individual files incrementally",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, path := range args {
		if _, err := a.ingest.IngestFile(ctx, path); err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		cmd.Printf("Indexed %s\n", path)
	}
	return nil
}
