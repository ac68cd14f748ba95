package driven

import "context"

// VectorIndex provides chunk-level similarity search operations.
// It is populated at ingestion and queried by retrieval pass 1.
type VectorIndex interface {
	// Add inserts or replaces the vector for the given chunk ID.
	Add(ctx context.Context, chunkID string, embedding []float32) error

	// Delete removes a vector from the index.
	Delete(ctx context.Context, chunkID string) error

	// Search returns up to k chunks most similar to query. When allow is
	// non-nil, only chunk IDs for which it returns true are considered.
	Search(ctx context.Context, query []float32, k int, allow func(chunkID string) bool) ([]VectorHit, error)

	// Len returns the number of indexed vectors.
	Len() int

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the similarity score; higher is closer.
	Similarity float64
}
