package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cliniq/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/postprocessors/chunker"
)

const followUpText = "Follow up with cardiology soon. Repeat labs in two weeks. Call if worse."

type ingestFixture struct {
	service   *IngestService
	chunker   *chunker.Processor
	store     *memory.ChunkStore
	index     *memory.VectorIndex
	embedder  *mockEmbeddingService
	artifacts *mockArtifactStore
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	f := &ingestFixture{
		chunker:   chunker.New(chunker.WithMinWords(3), chunker.WithMaxWords(6), chunker.WithOverlapWords(0)),
		store:     memory.NewChunkStore(),
		index:     memory.NewVectorIndex(nil),
		embedder:  &mockEmbeddingService{},
		artifacts: newMockArtifactStore(),
	}
	f.store.Subscribe(f.index)
	f.service = NewIngestService(f.chunker, f.store, f.index, f.embedder, f.artifacts)
	return f
}

func testArtifact(id, patientID, text string) *domain.Artifact {
	return &domain.Artifact{
		ID:         id,
		Type:       "progress_note",
		PatientID:  patientID,
		OccurredAt: time.Date(2024, 5, 2, 14, 0, 0, 0, time.UTC),
		Text:       text,
		Source:     "test",
	}
}

func TestIngestService_Ingest(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	a := testArtifact("note-1", "p1", followUpText)

	want, err := f.chunker.Process(ctx, a)
	require.NoError(t, err)
	require.NotEmpty(t, want)

	report, err := f.service.Ingest(ctx, a)
	require.NoError(t, err)

	assert.Equal(t, "note-1", report.ArtifactID)
	assert.Equal(t, len(want), report.Chunks)
	assert.Equal(t, len(want), report.Store.StoredCount)
	assert.Equal(t, len(want), report.Indexed)
	assert.Empty(t, report.Store.Errors)
	assert.Equal(t, len(want), f.index.Len())

	stored := f.store.GetByArtifact(ctx, "note-1")
	require.Len(t, stored, len(want))
	for i := range stored {
		assert.Equal(t, followUpText[stored[i].Offsets.Start:stored[i].Offsets.End], stored[i].Text)
	}

	_, err = f.artifacts.Get(ctx, "note-1")
	assert.NoError(t, err)
	assert.Equal(t, 1, f.embedder.calls, "chunks are embedded in one batch")
}

func TestIngestService_IngestTwiceSkipsDuplicates(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	a := testArtifact("note-1", "p1", followUpText)

	first, err := f.service.Ingest(ctx, a)
	require.NoError(t, err)

	second, err := f.service.Ingest(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Store.StoredCount)
	assert.Equal(t, first.Chunks, second.Store.SkippedCount)
	assert.Len(t, f.store.GetByArtifact(ctx, "note-1"), first.Chunks)
}

func TestIngestService_RejectsChangedArtifact(t *testing.T) {
	amended := "Amended: patient reports chest pain on exertion. Refer to cardiology."

	tests := []struct {
		name      string
		persisted bool
	}{
		{"with artifact store", true},
		{"chunk store only", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture(t)
			if !tt.persisted {
				f.service = NewIngestService(f.chunker, f.store, f.index, f.embedder, nil)
			}
			ctx := context.Background()

			first, err := f.service.Ingest(ctx, testArtifact("note-1", "p1", followUpText))
			require.NoError(t, err)

			_, err = f.service.Ingest(ctx, testArtifact("note-1", "p1", amended))
			assert.ErrorIs(t, err, domain.ErrAlreadyExists)

			stored := f.store.GetByArtifact(ctx, "note-1")
			require.Len(t, stored, first.Chunks)
			for i := range stored {
				assert.Equal(t, followUpText[stored[i].Offsets.Start:stored[i].Offsets.End], stored[i].Text)
			}
			assert.Equal(t, first.Chunks, f.index.Len())

			if tt.persisted {
				persisted, err := f.artifacts.Get(ctx, "note-1")
				require.NoError(t, err)
				assert.Equal(t, followUpText, persisted.Text)
			}
		})
	}
}

func TestIngestService_RejectsChangedMetadata(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	_, err := f.service.Ingest(ctx, testArtifact("note-1", "p1", followUpText))
	require.NoError(t, err)

	moved := testArtifact("note-1", "p2", followUpText)
	_, err = f.service.Ingest(ctx, moved)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Empty(t, f.store.GetByPatient(ctx, "p2"))
}

func TestIngestService_InvalidArtifact(t *testing.T) {
	tests := []struct {
		name     string
		artifact *domain.Artifact
	}{
		{"nil", nil},
		{"missing id", testArtifact("", "p1", followUpText)},
		{"missing patient", testArtifact("note-1", " ", followUpText)},
		{"missing time", func() *domain.Artifact {
			a := testArtifact("note-1", "p1", followUpText)
			a.OccurredAt = time.Time{}
			return a
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture(t)

			_, err := f.service.Ingest(context.Background(), tt.artifact)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Zero(t, f.embedder.calls)
			assert.Zero(t, f.index.Len())
		})
	}
}

func TestIngestService_NothingStoredOnEmbeddingFailure(t *testing.T) {
	f := newIngestFixture(t)
	f.embedder.embedErr = domain.ErrRateLimited
	ctx := context.Background()

	_, err := f.service.Ingest(ctx, testArtifact("note-1", "p1", followUpText))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	assert.Empty(t, f.store.GetByArtifact(ctx, "note-1"))
	assert.Zero(t, f.index.Len())
	_, err = f.artifacts.Get(ctx, "note-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestService_RejectsMisalignedChunks(t *testing.T) {
	a := testArtifact("note-1", "p1", followUpText)
	bad := domain.Chunk{
		ID:         "c1",
		ArtifactID: a.ID,
		PatientID:  a.PatientID,
		Text:       "Follow up",
		Offsets:    domain.Offsets{Start: 1, End: 10},
		OccurredAt: a.OccurredAt,
	}
	embedder := &mockEmbeddingService{}
	s := NewIngestService(&mockChunker{chunks: []domain.Chunk{bad}}, memory.NewChunkStore(),
		memory.NewVectorIndex(nil), embedder, nil)

	_, err := s.Ingest(context.Background(), a)
	assert.ErrorIs(t, err, domain.ErrOffsetMismatch)
	assert.Zero(t, embedder.calls)
}

func TestIngestService_ChunkerError(t *testing.T) {
	boom := errors.New("boom")
	s := NewIngestService(&mockChunker{err: boom}, memory.NewChunkStore(),
		memory.NewVectorIndex(nil), &mockEmbeddingService{}, nil)

	_, err := s.Ingest(context.Background(), testArtifact("note-1", "p1", followUpText))
	assert.ErrorIs(t, err, boom)
}

func TestIngestService_EmptyText(t *testing.T) {
	f := newIngestFixture(t)

	report, err := f.service.Ingest(context.Background(), testArtifact("note-1", "p1", "   \n\n  "))
	require.NoError(t, err)
	assert.Zero(t, report.Chunks)
	assert.Zero(t, f.embedder.calls)
}

func TestIngestService_Remove(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	r1, err := f.service.Ingest(ctx, testArtifact("note-1", "p1", followUpText))
	require.NoError(t, err)
	_, err = f.service.Ingest(ctx, testArtifact("note-2", "p1", "Metformin started today. Recheck glucose."))
	require.NoError(t, err)
	_, err = f.service.Ingest(ctx, testArtifact("note-3", "p2", "Blood pressure stable on current dose."))
	require.NoError(t, err)

	n, err := f.service.Remove(ctx, "note-1")
	require.NoError(t, err)
	assert.Equal(t, r1.Chunks, n)
	assert.Empty(t, f.store.GetByArtifact(ctx, "note-1"))
	_, err = f.artifacts.Get(ctx, "note-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	before := f.index.Len()
	n, err = f.service.RemovePatient(ctx, "p1")
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.Equal(t, before-n, f.index.Len(), "index follows store removals")
	assert.Empty(t, f.store.GetByPatient(ctx, "p1"))
	assert.NotEmpty(t, f.store.GetByPatient(ctx, "p2"))

	_, err = f.service.Remove(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.service.RemovePatient(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestService_Rehydrate(t *testing.T) {
	ctx := context.Background()
	artifacts := newMockArtifactStore()
	require.NoError(t, artifacts.Save(ctx, testArtifact("note-1", "p1", followUpText)))
	require.NoError(t, artifacts.Save(ctx, testArtifact("note-2", "", "No patient on this one.")))
	require.NoError(t, artifacts.Save(ctx, testArtifact("note-3", "p2", "Blood pressure stable on current dose.")))

	store := memory.NewChunkStore()
	index := memory.NewVectorIndex(nil)
	s := NewIngestService(
		chunker.New(chunker.WithMinWords(3), chunker.WithMaxWords(6), chunker.WithOverlapWords(0)),
		store, index, &mockEmbeddingService{}, artifacts,
	)

	n, err := s.Rehydrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotEmpty(t, store.GetByArtifact(ctx, "note-1"))
	assert.Empty(t, store.GetByArtifact(ctx, "note-2"))
	assert.NotEmpty(t, store.GetByArtifact(ctx, "note-3"))
	assert.Len(t, artifacts.order, 3, "rehydrate does not save artifacts again")
}

// countingChunkStore records how many writes reach the store.
type countingChunkStore struct {
	*memory.ChunkStore
	writes int
}

func (c *countingChunkStore) Store(ctx context.Context, chunks []domain.Chunk) domain.StoreResult {
	c.writes++
	return c.ChunkStore.Store(ctx, chunks)
}

func TestIngestService_RehydrateWritesOnce(t *testing.T) {
	ctx := context.Background()
	artifacts := newMockArtifactStore()
	require.NoError(t, artifacts.Save(ctx, testArtifact("note-1", "p1", followUpText)))
	require.NoError(t, artifacts.Save(ctx, testArtifact("note-2", "p1", "Metformin started today. Recheck glucose.")))
	require.NoError(t, artifacts.Save(ctx, testArtifact("note-3", "p2", "Blood pressure stable on current dose.")))

	store := &countingChunkStore{ChunkStore: memory.NewChunkStore()}
	index := memory.NewVectorIndex(nil)
	s := NewIngestService(
		chunker.New(chunker.WithMinWords(3), chunker.WithMaxWords(6), chunker.WithOverlapWords(0)),
		store, index, &mockEmbeddingService{}, artifacts,
	)

	n, err := s.Rehydrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, store.writes)
	assert.Equal(t, store.Statistics(ctx).TotalChunks, index.Len())
	assert.Equal(t, 3, store.Statistics(ctx).TotalArtifacts)
}

func TestIngestService_RehydrateStopsOnProviderError(t *testing.T) {
	ctx := context.Background()
	artifacts := newMockArtifactStore()
	require.NoError(t, artifacts.Save(ctx, testArtifact("note-1", "p1", followUpText)))

	s := NewIngestService(chunker.New(), memory.NewChunkStore(), memory.NewVectorIndex(nil),
		&mockEmbeddingService{embedErr: domain.ErrRateLimited}, artifacts)

	n, err := s.Rehydrate(ctx)
	assert.Zero(t, n)
	var pe *domain.ProviderError
	assert.ErrorAs(t, err, &pe)
}

func TestIngestService_RehydrateWithoutArtifactStore(t *testing.T) {
	s := NewIngestService(chunker.New(), memory.NewChunkStore(), memory.NewVectorIndex(nil), &mockEmbeddingService{}, nil)

	n, err := s.Rehydrate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngestService_Expire(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	old := testArtifact("note-old", "p1", followUpText)
	old.OccurredAt = time.Date(2019, 1, 10, 9, 0, 0, 0, time.UTC)
	_, err := f.service.Ingest(ctx, old)
	require.NoError(t, err)
	_, err = f.service.Ingest(ctx, testArtifact("note-new", "p1", "Metformin started today. Recheck glucose."))
	require.NoError(t, err)

	n, err := f.service.Expire(ctx, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, f.store.GetByArtifact(ctx, "note-old"))
	assert.NotEmpty(t, f.store.GetByArtifact(ctx, "note-new"))
	_, err = f.artifacts.Get(ctx, "note-old")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err = f.service.Expire(ctx, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngestService_Expire_Invalid(t *testing.T) {
	f := newIngestFixture(t)

	_, err := f.service.Expire(context.Background(), time.Time{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	s := NewIngestService(chunker.New(), memory.NewChunkStore(), memory.NewVectorIndex(nil), &mockEmbeddingService{}, nil)
	n, err := s.Expire(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}
