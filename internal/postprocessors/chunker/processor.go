// Package chunker provides a sentence-aligned, word-count chunking processor.
package chunker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
	"github.com/custodia-labs/cliniq/internal/postprocessors/sentences"
)

// Default chunk sizing, in words.
const (
	DefaultMinWords     = 200
	DefaultMaxWords     = 300
	DefaultOverlapWords = 50
)

// chunkNamespace seeds deterministic chunk IDs.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("cliniq:chunk"))

// Verify interface compliance.
var _ driven.Chunker = (*Processor)(nil)

// Processor splits artifact text into overlapping, sentence-aligned chunks.
// It implements the driven.Chunker interface.
type Processor struct {
	minWords     int
	maxWords     int
	overlapWords int
	detector     *sentences.Detector
	now          func() time.Time
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithMinWords sets the lower bound of the target chunk size.
func WithMinWords(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.minWords = n
		}
	}
}

// WithMaxWords sets the upper bound of the target chunk size.
func WithMaxWords(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxWords = n
		}
	}
}

// WithOverlapWords sets the minimum overlap between consecutive chunks.
func WithOverlapWords(n int) Option {
	return func(p *Processor) {
		if n >= 0 {
			p.overlapWords = n
		}
	}
}

// WithDetector sets the sentence boundary detector. The segmenter used at
// query time must share the same detector configuration.
func WithDetector(d *sentences.Detector) Option {
	return func(p *Processor) {
		if d != nil {
			p.detector = d
		}
	}
}

// WithClock sets the clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		minWords:     DefaultMinWords,
		maxWords:     DefaultMaxWords,
		overlapWords: DefaultOverlapWords,
		detector:     sentences.NewDetector(),
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.minWords > p.maxWords {
		p.minWords = p.maxWords
	}
	// Overlap must leave room for new content in every chunk
	if p.overlapWords >= p.minWords {
		p.overlapWords = p.minWords / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "sentence"
}

// Process splits the artifact text into chunks.
func (p *Processor) Process(ctx context.Context, artifact *domain.Artifact) ([]domain.Chunk, error) {
	if artifact == nil {
		return nil, fmt.Errorf("artifact is nil: %w", domain.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := artifact.Text
	spans := p.detector.Detect(text, 0)
	if len(spans) == 0 {
		// Empty or whitespace-only text produces no chunks
		return nil, nil
	}

	words := make([]int, len(spans))
	for i, sp := range spans {
		words[i] = sentences.WordCount(text[sp.Start:sp.End])
	}

	groups := p.group(words)
	createdAt := p.now().UTC()
	chunks := make([]domain.Chunk, 0, len(groups))

	for pos, g := range groups {
		off := domain.Offsets{Start: spans[g[0]].Start, End: spans[g[1]].End}
		chunks = append(chunks, domain.Chunk{
			ID:           ChunkID(artifact.ID, off),
			ArtifactID:   artifact.ID,
			PatientID:    artifact.PatientID,
			ArtifactType: artifact.Type,
			Text:         text[off.Start:off.End],
			Offsets:      off,
			OccurredAt:   artifact.OccurredAt,
			Author:       artifact.Author,
			Source:       artifact.Source,
			CreatedAt:    createdAt,
			Position:     pos,
			Entities:     mentioned(artifact.Entities, text[off.Start:off.End]),
		})
	}

	return chunks, nil
}

// group returns inclusive [first, last] sentence index pairs, one per chunk.
func (p *Processor) group(words []int) [][2]int {
	n := len(words)
	var groups [][2]int

	start := 0
	mustReach := 0
	for start < n {
		end := start
		count := words[start]
		for end+1 < n && (end < mustReach || (count < p.minWords && count+words[end+1] <= p.maxWords)) {
			end++
			count += words[end]
		}
		groups = append(groups, [2]int{start, end})
		if end == n-1 {
			break
		}

		// Walk back by whole sentences until the overlap is reached,
		// never back to the current chunk's first sentence. The overlap is
		// kept even when it and the next sentence together exceed MAX.
		next := end + 1
		back := 0
		for next > start+1 && back < p.overlapWords {
			next--
			back += words[next]
		}

		start = next
		mustReach = end + 1
	}

	return groups
}

// mentioned returns the entities whose text occurs in chunkText,
// compared case-insensitively.
func mentioned(entities []domain.Entity, chunkText string) []domain.Entity {
	if len(entities) == 0 {
		return nil
	}
	lower := strings.ToLower(chunkText)
	var out []domain.Entity
	for _, e := range entities {
		if e.Text != "" && strings.Contains(lower, strings.ToLower(e.Text)) {
			out = append(out, e)
		}
	}
	return out
}

// ChunkID returns the deterministic ID of the chunk covering off within
// the artifact. Re-chunking an unchanged artifact yields the same IDs.
func ChunkID(artifactID string, off domain.Offsets) string {
	name := fmt.Sprintf("%s:%d:%d", artifactID, off.Start, off.End)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}
