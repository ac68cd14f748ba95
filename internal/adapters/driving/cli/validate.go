package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/services"
)

var (
	validateStrict bool
	validateJSON   bool
)

// citationDocument is the file read by the validate command.
type citationDocument struct {
	Extractions []domain.Extraction `json:"extractions"`
	ChunkIDs    []string            `json:"chunk_ids"`
}

// errCitationsInvalid makes validate exit non-zero after printing its report.
var errCitationsInvalid = errors.New("citations are invalid")

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check extraction citations against indexed chunks",
	Long: `Reads extractions from a YAML or JSON file and checks each citation:

  chunk_ids: [chunk-1]
  extractions:
    - type: medication
      value: metformin
      provenance:
        chunk_id: chunk-1
        char_offsets: [19, 28]
        supporting_text: Metformin

When chunk_ids is omitted, every cited chunk is a candidate.
Exits non-zero when any citation fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "treat whitespace and case differences as errors")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := requireCore(ctx); err != nil {
		return err
	}
	if chunkService == nil || citationValidator == nil {
		return errors.New("citation validator not configured")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var doc citationDocument
	if err := decodeDocument(data, &doc); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	ids := doc.ChunkIDs
	if len(ids) == 0 {
		ids = citedChunkIDs(doc.Extractions)
	}
	candidates, err := loadChunks(ctx, ids)
	if err != nil {
		return err
	}

	validator := citationValidator
	if validateStrict {
		validator = services.NewCitationValidator(services.WithStrictMode(true))
	}
	result := validator.Validate(doc.Extractions, candidates)

	if validateJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(out))
	} else {
		cmd.Println(validator.Summary(result))
		printIssues(cmd, result)
	}

	if !result.Valid {
		return errCitationsInvalid
	}
	return nil
}

func citedChunkIDs(extractions []domain.Extraction) []string {
	seen := make(map[string]bool)
	var ids []string
	for i := range extractions {
		p := extractions[i].Provenance
		if p == nil || p.ChunkID == "" || seen[p.ChunkID] {
			continue
		}
		seen[p.ChunkID] = true
		ids = append(ids, p.ChunkID)
	}
	return ids
}

// loadChunks fetches the chunks with the given IDs, skipping unknown ones.
func loadChunks(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	chunks := make([]domain.Chunk, 0, len(ids))
	for _, id := range ids {
		c, err := chunkService.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading chunk %s: %w", id, err)
		}
		chunks = append(chunks, *c)
	}
	return chunks, nil
}
