package domain

import (
	"fmt"
	"time"
)

// ChunkFilter selects chunks. Non-zero fields compose as a logical AND.
type ChunkFilter struct {
	// PatientID restricts to one patient.
	PatientID string `json:"patient_id,omitempty"`

	// ArtifactID restricts to one artifact.
	ArtifactID string `json:"artifact_id,omitempty"`

	// DateFrom and DateTo are inclusive calendar-day bounds (UTC) on OccurredAt.
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`

	// ArtifactType restricts to one artifact type.
	ArtifactType string `json:"artifact_type,omitempty"`

	// EntityType requires an entity annotation of this type.
	EntityType string `json:"entity_type,omitempty"`

	// EntityText requires an entity whose text contains this substring
	// (case-insensitive). Combined with EntityType, one entity must match both.
	EntityText string `json:"entity_text,omitempty"`

	// Limit caps the result count; 0 means unlimited.
	Limit int `json:"limit,omitempty"`

	// Offset skips the first results after ordering.
	Offset int `json:"offset,omitempty"`
}

// Unpaged returns a copy of the filter without Limit and Offset.
func (f ChunkFilter) Unpaged() ChunkFilter {
	f.Limit = 0
	f.Offset = 0
	return f
}

// StoreError records one rejected chunk of a Store batch.
type StoreError struct {
	ChunkID string `json:"chunk_id,omitempty"`
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// StoreResult summarises a Store batch.
type StoreResult struct {
	StoredCount      int          `json:"stored_count"`
	SkippedCount     int          `json:"skipped_count"`
	Errors           []StoreError `json:"errors"`
	ProcessingTimeMS int64        `json:"processing_time_ms"`
}

// StoreStatistics describes the contents of a chunk store.
type StoreStatistics struct {
	TotalChunks      int            `json:"total_chunks"`
	TotalPatients    int            `json:"total_patients"`
	TotalArtifacts   int            `json:"total_artifacts"`
	ChunksByType     map[string]int `json:"chunks_by_type"`
	OldestChunkDate  *time.Time     `json:"oldest_chunk_date"`
	NewestChunkDate  *time.Time     `json:"newest_chunk_date"`
	MemoryUsageBytes int64          `json:"memory_usage_bytes,omitempty"`
}

// DayLayout is the calendar-day format accepted by date filters.
const DayLayout = "2006-01-02"

// ParseDay parses a YYYY-MM-DD day as UTC midnight. An empty string yields nil.
func ParseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: day %q must be YYYY-MM-DD", ErrInvalidInput, s)
	}
	return &t, nil
}
