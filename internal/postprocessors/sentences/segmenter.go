package sentences

import (
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
)

// Verify interface compliance.
var (
	_ driven.SentenceSegmenter = (*Segmenter)(nil)
	_ driven.RemovalListener   = (*Segmenter)(nil)
)

// Segmenter splits chunks into citable sentences and caches the result
// per chunk ID. It is safe for concurrent use.
type Segmenter struct {
	detector *Detector

	mu    sync.RWMutex
	cache map[string][]domain.Sentence
}

// NewSegmenter creates a segmenter over the given detector.
// A nil detector uses NewDetector().
func NewSegmenter(detector *Detector) *Segmenter {
	if detector == nil {
		detector = NewDetector()
	}
	return &Segmenter{
		detector: detector,
		cache:    make(map[string][]domain.Sentence),
	}
}

// SentenceID returns the deterministic ID of the sentence at position
// within the chunk.
func SentenceID(chunkID string, position int) string {
	return fmt.Sprintf("%s#s%d", chunkID, position)
}

// Segment returns the ordered sentences of chunk with chunk-relative and
// artifact-absolute offsets. The returned slice must not be modified.
func (s *Segmenter) Segment(chunk *domain.Chunk) []domain.Sentence {
	if chunk == nil || strings.TrimSpace(chunk.Text) == "" {
		return nil
	}

	if chunk.ID != "" {
		s.mu.RLock()
		cached, ok := s.cache[chunk.ID]
		s.mu.RUnlock()
		if ok {
			return cached
		}
	}

	out := s.segment(chunk)

	if chunk.ID != "" {
		s.mu.Lock()
		s.cache[chunk.ID] = out
		s.mu.Unlock()
	}
	return out
}

func (s *Segmenter) segment(chunk *domain.Chunk) []domain.Sentence {
	base := chunk.Offsets.Start
	spans := s.detector.Detect(chunk.Text, base)

	// The detector always covers its input; fall back to one sentence
	// spanning the trimmed chunk rather than return a partial partition.
	if !Covers(chunk.Text, spans, base) {
		start := len(chunk.Text) - len(strings.TrimLeft(chunk.Text, " \t\n\r\v\f"))
		end := len(strings.TrimRight(chunk.Text, " \t\n\r\v\f"))
		spans = []domain.Offsets{{Start: start + base, End: end + base}}
	}

	out := make([]domain.Sentence, len(spans))
	for i, abs := range spans {
		rel := abs.Shift(-base)
		out[i] = domain.Sentence{
			ID:              SentenceID(chunk.ID, i),
			ChunkID:         chunk.ID,
			Text:            chunk.Text[rel.Start:rel.End],
			Offsets:         rel,
			AbsoluteOffsets: abs,
			Position:        i,
		}
	}
	return out
}

// Invalidate drops cached sentences for the given chunks.
func (s *Segmenter) Invalidate(chunkIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range chunkIDs {
		delete(s.cache, id)
	}
}

// ChunksRemoved implements driven.RemovalListener.
func (s *Segmenter) ChunksRemoved(ids []string) {
	s.Invalidate(ids...)
}

// Len returns the number of cached chunks.
func (s *Segmenter) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}
