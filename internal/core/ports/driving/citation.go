package driving

import "github.com/custodia-labs/cliniq/internal/core/domain"

// CitationValidator checks extraction provenance against retrieved chunks.
// Results are returned as data and never as errors.
type CitationValidator interface {
	// Validate checks every extraction against the candidate chunks.
	Validate(extractions []domain.Extraction, candidates []domain.Chunk) domain.ValidationResult

	// Summary renders a one-line description of a result.
	Summary(result domain.ValidationResult) string
}

// ConfidenceScorer reduces retrieval and extraction signals to one score.
type ConfidenceScorer interface {
	// Score computes the confidence of an answer.
	Score(candidates []domain.RetrievedSentence, extractions []domain.Extraction) domain.ConfidenceScore
}
