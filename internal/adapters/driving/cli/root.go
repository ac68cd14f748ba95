// Package cli provides the command-line interface for cliniq.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cliniq/internal/core/ports/driving"
	"github.com/custodia-labs/cliniq/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services used by commands. Set by the composition root or by tests.
var (
	settingsService   driving.SettingsService
	ingestService     driving.IngestService
	retrievalService  driving.RetrievalService
	answerService     driving.AnswerService
	chunkService      driving.ChunkService
	citationValidator driving.CitationValidator
	scheduler         driving.Scheduler
)

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "cliniq",
	Short: "Provenance-preserving retrieval over clinical notes",
	Long: `cliniq chunks clinical artifacts into sentence-aligned spans, retrieves the
sentences that best answer a question, and checks that every cited fact
points at an exact span of its source.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		logger.SetOutput(cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.cliniq/config.toml)")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	defer closeServices()
	return rootCmd.ExecuteContext(ctx)
}
