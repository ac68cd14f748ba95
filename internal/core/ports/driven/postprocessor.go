package driven

import (
	"context"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

// Chunker splits an artifact into ordered, overlapping chunks whose offsets
// address the artifact text exactly.
type Chunker interface {
	// Name returns the chunker name for logging and configuration.
	Name() string

	// Process returns the artifact's chunks in order. Empty text yields none.
	Process(ctx context.Context, artifact *domain.Artifact) ([]domain.Chunk, error)
}
