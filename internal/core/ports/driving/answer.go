package driving

import (
	"context"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

// AnswerService answers questions with validated citations.
type AnswerService interface {
	// Ask retrieves, generates, validates and scores an answer.
	// Answers whose citations fail validation are withheld.
	Ask(ctx context.Context, question string, filter domain.ChunkFilter) (*domain.Answer, error)
}
