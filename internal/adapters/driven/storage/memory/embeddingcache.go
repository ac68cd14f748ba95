package memory

import (
	"sync"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
)

// Ensure SentenceEmbeddingCache implements the interfaces.
var (
	_ driven.SentenceEmbeddingCache = (*SentenceEmbeddingCache)(nil)
	_ driven.RemovalListener        = (*SentenceEmbeddingCache)(nil)
)

// SentenceEmbeddingCache holds sentence embeddings keyed by sentence ID,
// with a secondary index by chunk for invalidation.
type SentenceEmbeddingCache struct {
	mu      sync.RWMutex
	entries map[string]domain.SentenceEmbedding
	byChunk map[string]map[string]struct{}
}

// NewSentenceEmbeddingCache creates an empty cache.
func NewSentenceEmbeddingCache() *SentenceEmbeddingCache {
	return &SentenceEmbeddingCache{
		entries: make(map[string]domain.SentenceEmbedding),
		byChunk: make(map[string]map[string]struct{}),
	}
}

// Get returns the cached embedding for a sentence.
func (c *SentenceEmbeddingCache) Get(sentenceID string) (domain.SentenceEmbedding, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[sentenceID]
	return e, ok
}

// Put caches an embedding, replacing any previous entry for the sentence.
func (c *SentenceEmbeddingCache) Put(e domain.SentenceEmbedding) {
	if e.SentenceID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.SentenceID] = e
	ids, ok := c.byChunk[e.ChunkID]
	if !ok {
		ids = make(map[string]struct{})
		c.byChunk[e.ChunkID] = ids
	}
	ids[e.SentenceID] = struct{}{}
}

// InvalidateChunks drops every sentence embedding of the given chunks.
func (c *SentenceEmbeddingCache) InvalidateChunks(chunkIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, chunkID := range chunkIDs {
		for id := range c.byChunk[chunkID] {
			delete(c.entries, id)
		}
		delete(c.byChunk, chunkID)
	}
}

// ChunksRemoved implements driven.RemovalListener.
func (c *SentenceEmbeddingCache) ChunksRemoved(ids []string) {
	c.InvalidateChunks(ids...)
}

// Len returns the number of cached sentences.
func (c *SentenceEmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
