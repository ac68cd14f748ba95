package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

var (
	queryFilter    filterFlags
	queryChunkK    int
	querySentenceK int
	queryJSON      bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Find the sentences that best answer a question",
	Long: `Runs two-pass retrieval: candidate chunks are found by vector similarity,
then their sentences are re-ranked against the question. Each sentence is
printed with its offsets into the source artifact.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryFilter.register(queryCmd)
	queryCmd.Flags().IntVar(&queryChunkK, "chunk-k", 0, "candidate chunks to re-rank (default from config)")
	queryCmd.Flags().IntVarP(&querySentenceK, "limit", "n", 0, "sentences to return (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := requireCore(ctx); err != nil {
		return err
	}
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	filter, err := queryFilter.toDomain()
	if err != nil {
		return err
	}

	res, err := retrievalService.RetrieveText(ctx, args[0], filter, queryChunkK, querySentenceK)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	outputRetrievalTable(cmd, res)
	return nil
}

func outputRetrievalTable(cmd *cobra.Command, res *domain.RetrievalResult) {
	if len(res.Sentences) == 0 {
		cmd.Println("No matching sentences found.")
	} else {
		cmd.Println("Sentences:")
		cmd.Println()
		for i := range res.Sentences {
			s := &res.Sentences[i]
			// Format: [N] text (score)
			cmd.Printf("[%d] %s (%.3f)\n", i+1, s.Text, s.Score)
			cmd.Printf("    %s %s [%d,%d) %s %s\n",
				s.ArtifactID, s.Metadata.ArtifactType,
				s.AbsoluteOffsets.Start, s.AbsoluteOffsets.End,
				s.Metadata.PatientID, s.Metadata.OccurredAt.Format(domain.DayLayout))
		}
	}

	if res.Partial {
		cmd.Println()
		cmd.Printf("Partial result: %d candidate chunk(s) omitted\n", len(res.Omitted))
		for _, o := range res.Omitted {
			cmd.Printf("  %s: %s\n", o.ChunkID, o.Reason)
		}
	}
}
