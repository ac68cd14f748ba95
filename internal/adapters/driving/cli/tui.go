package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui"
)

var (
	tuiChunkK    int
	tuiSentenceK int
)

// runProgram starts the terminal program; tests replace it.
var runProgram = func(app *tui.App) error {
	return app.Run()
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface.

Type a question to rank sentences across the record, then open the chunk
behind any sentence to read it in context with its offsets.

Scope a query inline:
  patient:<id> artifact:<id> type:<type> from:YYYY-MM-DD to:YYYY-MM-DD

Controls:
  Enter    - Search / Open chunk
  ↑/k, ↓/j - Navigate
  [ / ]    - Previous / next chunk of the artifact
  n        - New search
  Esc      - Back
  ?        - Help
  q        - Quit`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().IntVar(&tuiChunkK, "chunk-k", 0, "candidate chunks to re-rank (default from config)")
	tuiCmd.Flags().IntVarP(&tuiSentenceK, "limit", "n", 0, "sentences to show (default from config)")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = fmt.Errorf("TUI panicked: %v", r)
		}
	}()

	if err := requireCore(cmd.Context()); err != nil {
		return err
	}

	app, err := tui.NewApp(tui.NewPorts(retrievalService, chunkService))
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(cmd.Context()).WithLimits(tuiChunkK, tuiSentenceK)

	if err := runProgram(app); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
