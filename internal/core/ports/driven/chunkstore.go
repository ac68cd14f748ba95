package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

// ChunkStore is the authoritative registry of chunks.
// Only Store can partially fail, and only per item. Every other operation
// on an unknown ID returns nil, false or 0.
type ChunkStore interface {
	// Store validates and inserts chunks. Existing IDs are skipped, never
	// overwritten; malformed chunks are recorded in the result and skipped.
	Store(ctx context.Context, chunks []domain.Chunk) domain.StoreResult

	// Query returns chunks matching the filter, newest first.
	Query(ctx context.Context, filter domain.ChunkFilter) []domain.Chunk

	// Retrieve returns a chunk by ID, or nil.
	Retrieve(ctx context.Context, id string) *domain.Chunk

	// GetByPatient returns all chunks for a patient, newest first.
	GetByPatient(ctx context.Context, patientID string) []domain.Chunk

	// GetByArtifact returns all chunks for an artifact, newest first.
	GetByArtifact(ctx context.Context, artifactID string) []domain.Chunk

	// Delete removes a chunk and reports whether it existed.
	Delete(ctx context.Context, id string) bool

	// DeleteByPatient removes all chunks for a patient and returns the count.
	DeleteByPatient(ctx context.Context, patientID string) int

	// DeleteByArtifact removes all chunks for an artifact and returns the count.
	DeleteByArtifact(ctx context.Context, artifactID string) int

	// Clear removes every chunk and returns the count.
	Clear(ctx context.Context) int

	// GarbageCollect removes chunks with OccurredAt strictly before olderThan.
	GarbageCollect(ctx context.Context, olderThan time.Time) int

	// Statistics summarises the store contents.
	Statistics(ctx context.Context) domain.StoreStatistics

	// Subscribe registers a listener notified after chunks are removed.
	Subscribe(listener RemovalListener)
}

// RemovalListener is notified with the IDs of chunks that left the store.
// Caches derived from chunks use it to invalidate their entries.
type RemovalListener interface {
	ChunksRemoved(ids []string)
}

// RemovalListenerFunc adapts a function to RemovalListener.
type RemovalListenerFunc func(ids []string)

// ChunksRemoved calls f(ids).
func (f RemovalListenerFunc) ChunksRemoved(ids []string) {
	f(ids)
}
