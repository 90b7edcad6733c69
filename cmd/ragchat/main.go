// Command ragchat serves the RAG chat API and maintains its document index.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/ragchat/internal/infrastructure/logger"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Retrieval-augmented chat over your documents",
	Long: `ragchat indexes documents into a vector store and answers questions
about them through a streaming chat API.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
