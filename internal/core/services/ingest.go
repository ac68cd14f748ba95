package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
	"github.com/custodia-labs/cliniq/internal/core/ports/driving"
	"github.com/custodia-labs/cliniq/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService chunks artifacts, embeds the chunks and indexes them.
type IngestService struct {
	chunker   driven.Chunker
	store     driven.ChunkStore
	index     driven.VectorIndex
	embedder  driven.EmbeddingService
	artifacts driven.ArtifactStore
}

// NewIngestService creates a new ingest service.
// The artifacts parameter is optional (can be nil); without it artifacts
// live only as long as the process.
func NewIngestService(
	chunker driven.Chunker,
	store driven.ChunkStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	artifacts driven.ArtifactStore,
) *IngestService {
	return &IngestService{
		chunker:   chunker,
		store:     store,
		index:     index,
		embedder:  embedder,
		artifacts: artifacts,
	}
}

// Ingest chunks, embeds and stores one artifact. Nothing is stored when
// chunking or embedding fails. Artifacts are immutable: re-ingesting an ID
// with identical content is a no-op, and with different content it fails
// with domain.ErrAlreadyExists.
func (s *IngestService) Ingest(ctx context.Context, artifact *domain.Artifact) (*driving.IngestReport, error) {
	logger.Section("Ingest")

	batch, err := s.prepare(ctx, artifact)
	if err != nil {
		return nil, err
	}
	if err := s.checkUnchanged(ctx, artifact, batch.chunks); err != nil {
		return nil, err
	}

	if s.artifacts != nil {
		if err := s.artifacts.Save(ctx, artifact); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("save artifact %s: %w", artifact.ID, err)
		}
	}

	report := &driving.IngestReport{ArtifactID: artifact.ID, Chunks: len(batch.chunks)}
	report.Store, report.Indexed, err = s.commit(ctx, batch)
	if err != nil {
		return report, err
	}

	logger.Info("Ingested %s: %d chunks, %d stored, %d skipped, %d indexed",
		artifact.ID, report.Chunks, report.Store.StoredCount, report.Store.SkippedCount, report.Indexed)
	return report, nil
}

// chunkBatch holds chunks ready to store and their embeddings, index-aligned.
type chunkBatch struct {
	chunks  []domain.Chunk
	vectors [][]float32
}

func (b *chunkBatch) add(other *chunkBatch) {
	b.chunks = append(b.chunks, other.chunks...)
	b.vectors = append(b.vectors, other.vectors...)
}

// prepare validates, chunks and embeds an artifact without storing anything.
func (s *IngestService) prepare(ctx context.Context, artifact *domain.Artifact) (*chunkBatch, error) {
	if err := validateArtifact(artifact); err != nil {
		return nil, err
	}
	logger.Debug("Artifact %s: type=%s patient=%s bytes=%d",
		artifact.ID, artifact.Type, artifact.PatientID, len(artifact.Text))

	chunks, err := s.chunker.Process(ctx, artifact)
	if err != nil {
		return nil, fmt.Errorf("chunk artifact %s: %w", artifact.ID, err)
	}
	if err := domain.VerifyChunks(artifact, chunks); err != nil {
		return nil, fmt.Errorf("chunk artifact %s: %w", artifact.ID, err)
	}
	logger.Debug("Chunker %s produced %d chunks", s.chunker.Name(), len(chunks))

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed artifact %s: %w", artifact.ID, err)
	}
	return &chunkBatch{chunks: chunks, vectors: vectors}, nil
}

// commit stores a batch in one write and indexes the chunks the store took.
func (s *IngestService) commit(ctx context.Context, batch *chunkBatch) (domain.StoreResult, int, error) {
	result := s.store.Store(ctx, batch.chunks)

	rejected := make(map[int]struct{}, len(result.Errors))
	for _, e := range result.Errors {
		logger.Warn("Chunk %s rejected: %s", e.ChunkID, e.Message)
		rejected[e.Index] = struct{}{}
	}

	indexed := 0
	for i := range batch.chunks {
		if _, bad := rejected[i]; bad {
			continue
		}
		if err := s.index.Add(ctx, batch.chunks[i].ID, batch.vectors[i]); err != nil {
			return result, indexed, fmt.Errorf("index chunk %s: %w", batch.chunks[i].ID, err)
		}
		indexed++
	}
	return result, indexed, nil
}

// checkUnchanged rejects an artifact whose ID was already ingested with
// different content. The persisted artifact is authoritative; without an
// artifact store the chunks already held for the ID are compared instead.
func (s *IngestService) checkUnchanged(ctx context.Context, artifact *domain.Artifact, chunks []domain.Chunk) error {
	conflict := fmt.Errorf("%w: artifact %s was already ingested with different content",
		domain.ErrAlreadyExists, artifact.ID)

	if s.artifacts != nil {
		existing, err := s.artifacts.Get(ctx, artifact.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return nil
		case err != nil:
			return fmt.Errorf("get artifact %s: %w", artifact.ID, err)
		case !sameArtifact(existing, artifact):
			return conflict
		}
		return nil
	}

	existing := s.store.GetByArtifact(ctx, artifact.ID)
	if len(existing) == 0 {
		return nil
	}
	if !sameChunkIDs(existing, chunks) || domain.VerifyChunks(artifact, existing) != nil {
		return conflict
	}
	for i := range existing {
		if existing[i].PatientID != artifact.PatientID || !existing[i].OccurredAt.Equal(artifact.OccurredAt) {
			return conflict
		}
	}
	return nil
}

// sameArtifact compares the fields chunks are derived from.
func sameArtifact(a, b *domain.Artifact) bool {
	return a.Text == b.Text &&
		a.PatientID == b.PatientID &&
		a.Type == b.Type &&
		a.Author == b.Author &&
		a.Source == b.Source &&
		a.OccurredAt.Equal(b.OccurredAt)
}

func sameChunkIDs(a, b []domain.Chunk) bool {
	if len(a) != len(b) {
		return false
	}
	ids := make(map[string]struct{}, len(a))
	for i := range a {
		ids[a[i].ID] = struct{}{}
	}
	for i := range b {
		if _, ok := ids[b[i].ID]; !ok {
			return false
		}
	}
	return true
}

func (s *IngestService) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("got %d embeddings for %d chunks: %w",
			len(vectors), len(chunks), domain.ErrEmbeddingUnavailable)
	}
	return vectors, nil
}

// Remove deletes an artifact and all of its chunks. Vector and sentence
// caches follow through the store's removal listeners.
func (s *IngestService) Remove(ctx context.Context, artifactID string) (int, error) {
	if strings.TrimSpace(artifactID) == "" {
		return 0, fmt.Errorf("%w: artifact id required", domain.ErrInvalidInput)
	}

	n := s.store.DeleteByArtifact(ctx, artifactID)
	if s.artifacts != nil {
		if err := s.artifacts.Delete(ctx, artifactID); err != nil {
			return n, fmt.Errorf("delete artifact %s: %w", artifactID, err)
		}
	}
	logger.Info("Removed artifact %s (%d chunks)", artifactID, n)
	return n, nil
}

// RemovePatient deletes all artifacts and chunks of a patient.
func (s *IngestService) RemovePatient(ctx context.Context, patientID string) (int, error) {
	if strings.TrimSpace(patientID) == "" {
		return 0, fmt.Errorf("%w: patient id required", domain.ErrInvalidInput)
	}

	n := s.store.DeleteByPatient(ctx, patientID)
	if s.artifacts != nil {
		if _, err := s.artifacts.DeleteByPatient(ctx, patientID); err != nil {
			return n, fmt.Errorf("delete patient %s: %w", patientID, err)
		}
	}
	logger.Info("Removed patient %s (%d chunks)", patientID, n)
	return n, nil
}

// Rehydrate re-ingests every persisted artifact and returns the number
// rebuilt. Invalid artifacts are skipped; a provider failure stops the run.
// All chunks go to the store in a single write.
func (s *IngestService) Rehydrate(ctx context.Context) (int, error) {
	if s.artifacts == nil {
		return 0, nil
	}
	logger.Section("Rehydrate")

	artifacts, err := s.artifacts.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list artifacts: %w", err)
	}

	all := &chunkBatch{}
	count := 0
	for i := range artifacts {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		batch, err := s.prepare(ctx, &artifacts[i])
		if err != nil {
			if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrOffsetMismatch) {
				logger.Warn("Skipping artifact %s: %v", artifacts[i].ID, err)
				continue
			}
			return 0, err
		}
		all.add(batch)
		count++
	}

	result, indexed, err := s.commit(ctx, all)
	if err != nil {
		return 0, err
	}
	logger.Info("Rehydrated %d of %d artifacts: %d chunks stored, %d indexed",
		count, len(artifacts), result.StoredCount, indexed)
	return count, nil
}

// Expire removes every persisted artifact that occurred before the cutoff,
// chunks included. Without an artifact store there is nothing to expire.
func (s *IngestService) Expire(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		return 0, fmt.Errorf("%w: expiry cutoff required", domain.ErrInvalidInput)
	}
	if s.artifacts == nil {
		return 0, nil
	}

	artifacts, err := s.artifacts.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list artifacts: %w", err)
	}

	expired := 0
	for i := range artifacts {
		if !artifacts[i].OccurredAt.Before(before) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if _, err := s.Remove(ctx, artifacts[i].ID); err != nil {
			return expired, err
		}
		expired++
	}
	if expired > 0 {
		logger.Info("Expired %d artifact(s) older than %s", expired, before.UTC().Format(time.RFC3339))
	}
	return expired, nil
}

func validateArtifact(a *domain.Artifact) error {
	switch {
	case a == nil:
		return fmt.Errorf("%w: artifact is nil", domain.ErrInvalidInput)
	case strings.TrimSpace(a.ID) == "":
		return fmt.Errorf("%w: artifact id required", domain.ErrInvalidInput)
	case strings.TrimSpace(a.PatientID) == "":
		return fmt.Errorf("%w: artifact %s has no patient_id", domain.ErrInvalidInput, a.ID)
	case a.OccurredAt.IsZero():
		return fmt.Errorf("%w: artifact %s has no occurred_at", domain.ErrInvalidInput, a.ID)
	}
	return nil
}
