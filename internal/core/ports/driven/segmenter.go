package driven

import "github.com/custodia-labs/cliniq/internal/core/domain"

// SentenceSegmenter splits chunks into citable sentences with both
// chunk-relative and artifact-relative offsets.
type SentenceSegmenter interface {
	// Segment returns the chunk's sentences in order.
	Segment(chunk *domain.Chunk) []domain.Sentence

	// Invalidate drops cached sentences for the given chunk IDs.
	Invalidate(chunkIDs ...string)
}

// SentenceEmbeddingCache holds sentence vectors keyed by sentence ID.
// Entries are never recomputed while cached.
type SentenceEmbeddingCache interface {
	// Get returns a cached embedding.
	Get(sentenceID string) (domain.SentenceEmbedding, bool)

	// Put stores an embedding.
	Put(embedding domain.SentenceEmbedding)

	// InvalidateChunks drops every entry whose parent chunk is listed.
	InvalidateChunks(chunkIDs ...string)

	// Len returns the number of cached embeddings.
	Len() int
}
