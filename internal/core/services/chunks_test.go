package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cliniq/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/postprocessors/sentences"
)

func newTestChunkService(t *testing.T) (*ChunkService, *memory.ChunkStore, *mockArtifactStore) {
	t.Helper()
	ctx := context.Background()

	store := memory.NewChunkStore()
	artifacts := newMockArtifactStore()
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

	chunks := []domain.Chunk{
		fixtureChunk("c1", "a1", "p1", 0, "Metformin started. Recheck in a month.", day(10)),
		fixtureChunk("c2", "a1", "p1", 40, "Labs drawn today.", day(10)),
		fixtureChunk("c3", "a1", "p1", 58, "Patient feels well.", day(10)),
		fixtureChunk("c4", "a2", "p2", 0, "Blood pressure stable.", day(20)),
	}
	for i := range chunks {
		chunks[i].Position = i
	}
	chunks[3].Position = 0
	require.Equal(t, 4, store.Store(ctx, chunks).StoredCount)
	require.NoError(t, artifacts.Save(ctx, &domain.Artifact{ID: "a2", PatientID: "p2", Text: "Blood pressure stable."}))

	return NewChunkService(store, sentences.NewSegmenter(nil), artifacts), store, artifacts
}

func TestChunkService_List(t *testing.T) {
	svc, _, _ := newTestChunkService(t)
	ctx := context.Background()

	all, err := svc.List(ctx, domain.ChunkFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "c4", all[0].ID, "newest first")

	p1, err := svc.List(ctx, domain.ChunkFilter{PatientID: "p1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, p1, 2)

	_, err = svc.List(ctx, domain.ChunkFilter{Limit: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChunkService_Get(t *testing.T) {
	svc, _, _ := newTestChunkService(t)

	c, err := svc.Get(context.Background(), "c2")
	require.NoError(t, err)
	assert.Equal(t, "Labs drawn today.", c.Text)

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChunkService_GetDetails(t *testing.T) {
	svc, _, _ := newTestChunkService(t)
	ctx := context.Background()

	details, err := svc.GetDetails(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, "c1", details.PreviousID)
	assert.Equal(t, "c3", details.NextID)
	assert.Equal(t, 3, details.SiblingCount)
	require.Len(t, details.Sentences, 1)
	assert.Equal(t, "c2#s0", details.Sentences[0].ID)
	assert.Equal(t, domain.Offsets{Start: 40, End: 57}, details.Sentences[0].AbsoluteOffsets)

	first, err := svc.GetDetails(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, first.PreviousID)
	assert.Len(t, first.Sentences, 2)

	only, err := svc.GetDetails(ctx, "c4")
	require.NoError(t, err)
	assert.Empty(t, only.PreviousID)
	assert.Empty(t, only.NextID)
}

func TestChunkService_ArtifactText(t *testing.T) {
	svc, _, _ := newTestChunkService(t)

	text, err := svc.ArtifactText(context.Background(), "a2")
	require.NoError(t, err)
	assert.Equal(t, "Blood pressure stable.", text)

	_, err = svc.ArtifactText(context.Background(), "a1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	bare := NewChunkService(memory.NewChunkStore(), sentences.NewSegmenter(nil), nil)
	_, err = bare.ArtifactText(context.Background(), "a2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChunkService_DeleteAndGC(t *testing.T) {
	svc, store, _ := newTestChunkService(t)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, "c1"))
	assert.ErrorIs(t, svc.Delete(ctx, "c1"), domain.ErrNotFound)
	assert.Nil(t, store.Retrieve(ctx, "c1"))

	n, err := svc.GarbageCollect(ctx, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = svc.GarbageCollect(ctx, time.Time{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalChunks)
	assert.Equal(t, 1, stats.TotalPatients)
}
