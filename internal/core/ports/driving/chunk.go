package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

// ChunkService browses and maintains the chunk store.
type ChunkService interface {
	// List returns chunks matching the filter, newest first.
	List(ctx context.Context, filter domain.ChunkFilter) ([]domain.Chunk, error)

	// Get retrieves a chunk by ID. Unknown IDs return domain.ErrNotFound.
	Get(ctx context.Context, chunkID string) (*domain.Chunk, error)

	// GetDetails returns a chunk with its sentences and neighbours.
	GetDetails(ctx context.Context, chunkID string) (*ChunkDetails, error)

	// ArtifactText returns the full text of a persisted artifact.
	ArtifactText(ctx context.Context, artifactID string) (string, error)

	// Delete removes one chunk. Unknown IDs return domain.ErrNotFound.
	Delete(ctx context.Context, chunkID string) error

	// GarbageCollect removes chunks that occurred before olderThan.
	GarbageCollect(ctx context.Context, olderThan time.Time) (int, error)

	// Stats summarises the store contents.
	Stats(ctx context.Context) (domain.StoreStatistics, error)
}

// ChunkDetails is a chunk prepared for display.
type ChunkDetails struct {
	// Chunk is the stored chunk.
	Chunk domain.Chunk `json:"chunk"`

	// Sentences are the chunk's citable sentences in order.
	Sentences []domain.Sentence `json:"sentences"`

	// PreviousID and NextID link to the neighbouring chunks of the same
	// artifact, ordered by position. Empty at either end.
	PreviousID string `json:"previous_id,omitempty"`
	NextID     string `json:"next_id,omitempty"`

	// SiblingCount is the number of chunks of the artifact.
	SiblingCount int `json:"sibling_count"`
}
