package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
	"github.com/custodia-labs/cliniq/internal/core/ports/driving"
	"github.com/custodia-labs/cliniq/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// RetrievalService ranks citable sentences in two passes: a coarse chunk
// search over the vector index, then a fine sentence re-ranking restricted
// to the candidate chunks.
type RetrievalService struct {
	store     driven.ChunkStore
	index     driven.VectorIndex
	segmenter driven.SentenceSegmenter
	cache     driven.SentenceEmbeddingCache
	embedder  driven.EmbeddingService

	chunkK       int
	sentenceK    int
	concurrency  int
	embedTimeout time.Duration
	similarity   domain.SimilarityFunc
}

// RetrievalOption configures a RetrievalService.
type RetrievalOption func(*RetrievalService)

// WithRetrievalSettings applies defaults for k, concurrency and timeout.
func WithRetrievalSettings(s domain.RetrievalSettings) RetrievalOption {
	return func(r *RetrievalService) {
		if s.ChunkK > 0 {
			r.chunkK = s.ChunkK
		}
		if s.SentenceK > 0 {
			r.sentenceK = s.SentenceK
		}
		if s.Concurrency > 0 {
			r.concurrency = s.Concurrency
		}
		if s.EmbedTimeout > 0 {
			r.embedTimeout = s.EmbedTimeout
		}
	}
}

// WithSimilarity replaces cosine similarity in pass 2.
func WithSimilarity(f domain.SimilarityFunc) RetrievalOption {
	return func(r *RetrievalService) {
		if f != nil {
			r.similarity = f
		}
	}
}

// NewRetrievalService creates a new retrieval service.
func NewRetrievalService(
	store driven.ChunkStore,
	index driven.VectorIndex,
	segmenter driven.SentenceSegmenter,
	cache driven.SentenceEmbeddingCache,
	embedder driven.EmbeddingService,
	opts ...RetrievalOption,
) *RetrievalService {
	defaults := domain.DefaultAppSettings().Retrieval
	r := &RetrievalService{
		store:        store,
		index:        index,
		segmenter:    segmenter,
		cache:        cache,
		embedder:     embedder,
		chunkK:       defaults.ChunkK,
		sentenceK:    defaults.SentenceK,
		concurrency:  defaults.Concurrency,
		embedTimeout: defaults.EmbedTimeout,
		similarity:   domain.Cosine,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RetrieveText embeds the query text, then calls Retrieve.
func (r *RetrievalService) RetrieveText(
	ctx context.Context, query string, filter domain.ChunkFilter, chunkK, sentenceK int,
) (*domain.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if r.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	logger.Debug("Embedding query: %q", query)
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.Retrieve(ctx, vec, filter, chunkK, sentenceK)
}

// Retrieve ranks sentences for a precomputed query vector. Candidates whose
// sentences cannot be embedded are listed in Omitted and the result is
// marked Partial; only cancellation of ctx fails the whole call.
func (r *RetrievalService) Retrieve(
	ctx context.Context, query []float32, filter domain.ChunkFilter, chunkK, sentenceK int,
) (*domain.RetrievalResult, error) {
	logger.Section("Retrieval")

	if len(query) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", domain.ErrInvalidInput)
	}
	if r.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	if chunkK <= 0 {
		chunkK = r.chunkK
	}
	if sentenceK <= 0 {
		sentenceK = r.sentenceK
	}
	logger.Debug("chunkK=%d sentenceK=%d filter=%+v", chunkK, sentenceK, filter)

	result := &domain.RetrievalResult{
		Sentences:  []domain.RetrievedSentence{},
		Candidates: []domain.ChunkCandidate{},
	}

	candidates, err := r.passOne(ctx, query, filter, chunkK)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		logger.Info("No candidate chunks")
		return result, nil
	}
	result.Candidates = candidates
	logger.Debug("Pass 1: %d candidate chunks", len(candidates))

	sentences, omitted, err := r.passTwo(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	rankSentences(sentences)
	if len(sentences) > sentenceK {
		sentences = sentences[:sentenceK]
	}
	result.Sentences = sentences
	result.Omitted = omitted
	result.Partial = len(omitted) > 0

	if result.Partial {
		logger.Warn("Retrieval partial: %d of %d candidate chunks omitted", len(omitted), len(candidates))
	}
	logger.Info("Retrieved %d sentences from %d chunks", len(sentences), len(candidates))
	return result, nil
}

// passOne selects up to k chunks by vector similarity, restricted to the
// chunks matching filter.
func (r *RetrievalService) passOne(
	ctx context.Context, query []float32, filter domain.ChunkFilter, k int,
) ([]domain.ChunkCandidate, error) {
	var allow func(string) bool
	if filter.Unpaged() != (domain.ChunkFilter{}) {
		matching := r.store.Query(ctx, filter.Unpaged())
		if len(matching) == 0 {
			return nil, nil
		}
		allowed := make(map[string]struct{}, len(matching))
		for i := range matching {
			allowed[matching[i].ID] = struct{}{}
		}
		allow = func(id string) bool {
			_, ok := allowed[id]
			return ok
		}
		logger.Debug("Filter admits %d chunks", len(allowed))
	}

	hits, err := r.index.Search(ctx, query, k, allow)
	if err != nil {
		return nil, fmt.Errorf("chunk search: %w", err)
	}

	candidates := make([]domain.ChunkCandidate, 0, len(hits))
	for _, hit := range hits {
		chunk := r.store.Retrieve(ctx, hit.ChunkID)
		if chunk == nil {
			// Removed between search and lookup.
			continue
		}
		candidates = append(candidates, domain.ChunkCandidate{Chunk: *chunk, Score: hit.Similarity})
	}
	return candidates, nil
}

// passTwo scores every sentence of every candidate against query.
func (r *RetrievalService) passTwo(
	ctx context.Context, query []float32, candidates []domain.ChunkCandidate,
) ([]domain.RetrievedSentence, []domain.OmittedChunk, error) {
	scored := make([][]domain.RetrievedSentence, len(candidates))
	failures := make([]error, len(candidates))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i := range candidates {
		g.Go(func() error {
			scored[i], failures[i] = r.scoreChunk(ctx, query, &candidates[i].Chunk)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		sentences []domain.RetrievedSentence
		omitted   []domain.OmittedChunk
	)
	for i := range candidates {
		if failures[i] != nil {
			logger.Warn("Omitting chunk %s: %v", candidates[i].Chunk.ID, failures[i])
			omitted = append(omitted, domain.OmittedChunk{
				ChunkID: candidates[i].Chunk.ID,
				Reason:  failures[i].Error(),
			})
			continue
		}
		sentences = append(sentences, scored[i]...)
	}
	if sentences == nil {
		sentences = []domain.RetrievedSentence{}
	}
	return sentences, omitted, nil
}

// scoreChunk segments chunk, embeds the sentences missing from the cache
// within the per-chunk timeout, and scores them all.
func (r *RetrievalService) scoreChunk(
	ctx context.Context, query []float32, chunk *domain.Chunk,
) ([]domain.RetrievedSentence, error) {
	sents := r.segmenter.Segment(chunk)
	if len(sents) == 0 {
		return nil, nil
	}

	meta := domain.MetadataOf(chunk)
	vectors := make([][]float32, len(sents))
	var missing []int
	for i := range sents {
		if r.cache != nil {
			if cached, ok := r.cache.Get(sents[i].ID); ok {
				vectors[i] = cached.Vector
				continue
			}
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 {
		if r.embedder == nil {
			return nil, domain.ErrEmbeddingUnavailable
		}
		texts := make([]string, len(missing))
		for j, i := range missing {
			texts[j] = sents[i].Text
		}

		embedCtx, cancel := context.WithTimeout(ctx, r.embedTimeout)
		embedded, err := r.embedder.EmbedBatch(embedCtx, texts)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("sentence embedding timed out after %s: %w", r.embedTimeout, err)
			}
			return nil, fmt.Errorf("sentence embedding: %w", err)
		}
		if len(embedded) != len(texts) {
			return nil, fmt.Errorf("sentence embedding: got %d vectors for %d sentences", len(embedded), len(texts))
		}

		for j, i := range missing {
			vectors[i] = embedded[j]
			if r.cache != nil {
				r.cache.Put(domain.SentenceEmbedding{
					SentenceID:      sents[i].ID,
					ChunkID:         chunk.ID,
					ArtifactID:      chunk.ArtifactID,
					Vector:          embedded[j],
					Text:            sents[i].Text,
					AbsoluteOffsets: sents[i].AbsoluteOffsets,
					Metadata:        meta,
				})
			}
		}
		logger.Debug("Chunk %s: embedded %d of %d sentences", chunk.ID, len(missing), len(sents))
	}

	out := make([]domain.RetrievedSentence, len(sents))
	for i := range sents {
		out[i] = domain.RetrievedSentence{
			SentenceID:      sents[i].ID,
			ChunkID:         chunk.ID,
			ArtifactID:      chunk.ArtifactID,
			Score:           r.similarity(query, vectors[i]),
			Text:            sents[i].Text,
			AbsoluteOffsets: sents[i].AbsoluteOffsets,
			Metadata:        meta,
		}
	}
	return out, nil
}

// rankSentences orders by score descending, then by occurrence time
// descending, then by sentence ID.
func rankSentences(s []domain.RetrievedSentence) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		if !s[i].Metadata.OccurredAt.Equal(s[j].Metadata.OccurredAt) {
			return s[i].Metadata.OccurredAt.After(s[j].Metadata.OccurredAt)
		}
		return s[i].SentenceID < s[j].SentenceID
	})
}
