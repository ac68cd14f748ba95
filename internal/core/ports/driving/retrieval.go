package driving

import (
	"context"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

// RetrievalService provides two-pass retrieval to external actors.
type RetrievalService interface {
	// Retrieve ranks sentences for a precomputed query vector.
	Retrieve(
		ctx context.Context, query []float32, filter domain.ChunkFilter, chunkK, sentenceK int,
	) (*domain.RetrievalResult, error)

	// RetrieveText embeds the query text, then calls Retrieve.
	RetrieveText(
		ctx context.Context, query string, filter domain.ChunkFilter, chunkK, sentenceK int,
	) (*domain.RetrievalResult, error)
}
