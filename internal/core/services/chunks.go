package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
	"github.com/custodia-labs/cliniq/internal/core/ports/driving"
	"github.com/custodia-labs/cliniq/internal/logger"
)

// Ensure ChunkService implements the interface.
var _ driving.ChunkService = (*ChunkService)(nil)

// ChunkService browses and maintains the chunk store.
type ChunkService struct {
	store     driven.ChunkStore
	segmenter driven.SentenceSegmenter
	artifacts driven.ArtifactStore
}

// NewChunkService creates a new chunk service.
// The artifacts parameter is optional (can be nil).
func NewChunkService(
	store driven.ChunkStore,
	segmenter driven.SentenceSegmenter,
	artifacts driven.ArtifactStore,
) *ChunkService {
	return &ChunkService{
		store:     store,
		segmenter: segmenter,
		artifacts: artifacts,
	}
}

// List returns chunks matching the filter, newest first.
func (s *ChunkService) List(ctx context.Context, filter domain.ChunkFilter) ([]domain.Chunk, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", domain.ErrInvalidInput)
	}
	return s.store.Query(ctx, filter), nil
}

// Get retrieves a chunk by ID.
func (s *ChunkService) Get(ctx context.Context, chunkID string) (*domain.Chunk, error) {
	c := s.store.Retrieve(ctx, strings.TrimSpace(chunkID))
	if c == nil {
		return nil, fmt.Errorf("chunk %s: %w", chunkID, domain.ErrNotFound)
	}
	return c, nil
}

// GetDetails returns a chunk with its sentences and neighbours.
func (s *ChunkService) GetDetails(ctx context.Context, chunkID string) (*driving.ChunkDetails, error) {
	c, err := s.Get(ctx, chunkID)
	if err != nil {
		return nil, err
	}

	siblings := s.store.GetByArtifact(ctx, c.ArtifactID)
	sort.Slice(siblings, func(i, j int) bool {
		return siblings[i].Position < siblings[j].Position
	})

	details := &driving.ChunkDetails{
		Chunk:        *c,
		Sentences:    s.segmenter.Segment(c),
		SiblingCount: len(siblings),
	}
	for i := range siblings {
		if siblings[i].ID != c.ID {
			continue
		}
		if i > 0 {
			details.PreviousID = siblings[i-1].ID
		}
		if i+1 < len(siblings) {
			details.NextID = siblings[i+1].ID
		}
		break
	}
	return details, nil
}

// ArtifactText returns the full text of a persisted artifact.
func (s *ChunkService) ArtifactText(ctx context.Context, artifactID string) (string, error) {
	if s.artifacts == nil {
		return "", fmt.Errorf("artifact %s: %w", artifactID, domain.ErrNotFound)
	}
	a, err := s.artifacts.Get(ctx, artifactID)
	if err != nil {
		return "", fmt.Errorf("artifact %s: %w", artifactID, err)
	}
	return a.Text, nil
}

// Delete removes one chunk. Caches follow through store removal listeners.
func (s *ChunkService) Delete(ctx context.Context, chunkID string) error {
	if !s.store.Delete(ctx, chunkID) {
		return fmt.Errorf("chunk %s: %w", chunkID, domain.ErrNotFound)
	}
	logger.Info("Deleted chunk %s", chunkID)
	return nil
}

// GarbageCollect removes chunks that occurred before olderThan.
func (s *ChunkService) GarbageCollect(ctx context.Context, olderThan time.Time) (int, error) {
	if olderThan.IsZero() {
		return 0, fmt.Errorf("%w: cutoff time required", domain.ErrInvalidInput)
	}
	n := s.store.GarbageCollect(ctx, olderThan)
	logger.Info("Garbage collected %d chunks older than %s", n, olderThan.Format(domain.DayLayout))
	return n, nil
}

// Stats summarises the store contents.
func (s *ChunkService) Stats(ctx context.Context) (domain.StoreStatistics, error) {
	return s.store.Statistics(ctx), nil
}
