package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

var (
	askFilter    filterFlags
	askJSON      bool
	askShowDraft bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question with validated citations",
	Long: `Retrieves supporting chunks, asks the configured language model for an
answer with cited extractions, and validates every citation against the
source text. Answers with invalid citations are withheld.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askFilter.register(askCmd)
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	askCmd.Flags().BoolVar(&askShowDraft, "show-draft", false, "print the model's text when the answer is withheld")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := requireCore(ctx); err != nil {
		return err
	}
	if answerService == nil {
		return errors.New("answer service not configured")
	}

	filter, err := askFilter.toDomain()
	if err != nil {
		return err
	}

	answer, err := answerService.Ask(ctx, args[0], filter)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		if !askShowDraft {
			answer.Draft = ""
		}
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	outputAnswer(cmd, answer)
	return nil
}

func outputAnswer(cmd *cobra.Command, answer *domain.Answer) {
	if answer.Withheld {
		cmd.Println("Answer withheld: the response could not be grounded in the record.")
		if askShowDraft && answer.Draft != "" {
			cmd.Println()
			cmd.Println("Draft (unverified):")
			cmd.Println(answer.Draft)
		}
	} else {
		cmd.Println(answer.Text)
	}

	cmd.Println()
	cmd.Printf("Confidence: %s (%.2f) - %s\n",
		answer.Confidence.Label, answer.Confidence.Score, answer.Confidence.Reason)

	if len(answer.Extractions) > 0 {
		cmd.Println()
		cmd.Println("Citations:")
		for i := range answer.Extractions {
			printExtraction(cmd, i, &answer.Extractions[i])
		}
	}

	printIssues(cmd, answer.Validation)
}

func printExtraction(cmd *cobra.Command, i int, e *domain.Extraction) {
	cmd.Printf("  [%d] %s: %s\n", i+1, e.Type, e.Value)
	if p := e.Provenance; p != nil {
		cmd.Printf("      %q", p.SupportingText)
		if p.Offsets != nil {
			cmd.Printf(" %s [%d,%d)", p.ChunkID, p.Offsets.Start, p.Offsets.End)
		}
		cmd.Println()
	}
}

func printIssues(cmd *cobra.Command, r domain.ValidationResult) {
	if len(r.Errors) == 0 && len(r.Warnings) == 0 {
		return
	}
	cmd.Println()
	for _, issue := range r.Errors {
		cmd.Printf("  error   [%d] %s: %s\n", issue.ExtractionIndex, issue.Type, issue.Message)
	}
	for _, issue := range r.Warnings {
		cmd.Printf("  warning [%d] %s: %s\n", issue.ExtractionIndex, issue.Type, issue.Message)
	}
}
