package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interfaces.
var (
	_ driven.VectorIndex     = (*VectorIndex)(nil)
	_ driven.RemovalListener = (*VectorIndex)(nil)
)

// VectorIndex is a brute-force in-memory vector index over chunk
// embeddings. Search scores every allowed vector.
type VectorIndex struct {
	mu         sync.RWMutex
	dimensions int
	vectors    map[string][]float32
	similarity domain.SimilarityFunc
}

// NewVectorIndex creates an empty index. A nil similarity uses cosine.
func NewVectorIndex(similarity domain.SimilarityFunc) *VectorIndex {
	if similarity == nil {
		similarity = domain.Cosine
	}
	return &VectorIndex{
		vectors:    make(map[string][]float32),
		similarity: similarity,
	}
}

// Add stores or replaces the embedding of a chunk. The first vector added
// fixes the index dimensionality.
func (v *VectorIndex) Add(_ context.Context, chunkID string, embedding []float32) error {
	if chunkID == "" {
		return fmt.Errorf("chunk id required: %w", domain.ErrInvalidInput)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("empty embedding for %s: %w", chunkID, domain.ErrInvalidInput)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.dimensions == 0 {
		v.dimensions = len(embedding)
	} else if len(embedding) != v.dimensions {
		return fmt.Errorf("embedding has %d dimensions, index expects %d: %w",
			len(embedding), v.dimensions, domain.ErrInvalidInput)
	}
	v.vectors[chunkID] = slices.Clone(embedding)
	return nil
}

// Delete removes a chunk's embedding. Unknown IDs are ignored.
func (v *VectorIndex) Delete(_ context.Context, chunkID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.vectors, chunkID)
	return nil
}

// ChunksRemoved implements driven.RemovalListener.
func (v *VectorIndex) ChunksRemoved(ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, id := range ids {
		delete(v.vectors, id)
	}
}

// Search returns up to k chunks most similar to query, restricted to IDs
// accepted by allow (nil accepts all). Ties are ordered by chunk ID.
func (v *VectorIndex) Search(ctx context.Context, query []float32, k int, allow func(string) bool) ([]driven.VectorHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.dimensions != 0 && len(query) != v.dimensions {
		return nil, fmt.Errorf("query has %d dimensions, index expects %d: %w",
			len(query), v.dimensions, domain.ErrInvalidInput)
	}

	hits := make([]driven.VectorHit, 0, len(v.vectors))
	for id, vec := range v.vectors {
		if allow != nil && !allow(id) {
			continue
		}
		hits = append(hits, driven.VectorHit{ChunkID: id, Similarity: v.similarity(query, vec)})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of indexed chunks.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.vectors)
}

// Dimensions returns the fixed dimensionality, or 0 when empty.
func (v *VectorIndex) Dimensions() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dimensions
}

// Close releases all vectors.
func (v *VectorIndex) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vectors = make(map[string][]float32)
	v.dimensions = 0
	return nil
}
