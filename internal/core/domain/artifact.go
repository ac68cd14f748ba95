package domain

import (
	"fmt"
	"time"
)

// Artifact is one ingested clinical source document.
// Artifacts are immutable once ingested.
type Artifact struct {
	// ID is the unique identifier for the artifact.
	ID string `json:"id"`

	// Type is the artifact kind (e.g. "progress_note", "lab_report").
	Type string `json:"type"`

	// PatientID identifies the patient the artifact belongs to.
	PatientID string `json:"patient_id"`

	// OccurredAt is the clinical time of the artifact.
	OccurredAt time.Time `json:"occurred_at"`

	// Author is the optional clinician or system that wrote it.
	Author string `json:"author,omitempty"`

	// Text is the full text content. All chunk offsets index into it.
	Text string `json:"text"`

	// Source names the originating system.
	Source string `json:"source"`

	// Meta contains arbitrary key-value pairs.
	Meta map[string]any `json:"meta,omitempty"`

	// Entities are optional annotations produced by an external tagger.
	// The chunker attaches each one to the chunks that mention it.
	Entities []Entity `json:"entities,omitempty"`
}

// Entity is an annotation attached to a chunk by an external tagger.
type Entity struct {
	// Type is the entity category (e.g. "medication", "condition").
	Type string `json:"type"`

	// Text is the surface form as it appears in the chunk.
	Text string `json:"text"`
}

// Chunk is a contiguous, sentence-aligned span of an artifact sized for
// retrieval. Chunks are created once by the chunker and never modified.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string `json:"chunk_id"`

	// ArtifactID links to the parent Artifact.
	ArtifactID string `json:"artifact_id"`

	// PatientID is copied from the artifact.
	PatientID string `json:"patient_id"`

	// ArtifactType is copied from the artifact.
	ArtifactType string `json:"artifact_type"`

	// Text equals the artifact text addressed by Offsets.
	Text string `json:"chunk_text"`

	// Offsets is the artifact-relative span of Text.
	Offsets Offsets `json:"char_offsets"`

	// OccurredAt is copied from the artifact.
	OccurredAt time.Time `json:"occurred_at"`

	// Author is copied from the artifact.
	Author string `json:"author,omitempty"`

	// Source is copied from the artifact.
	Source string `json:"source"`

	// CreatedAt is the ingestion time.
	CreatedAt time.Time `json:"created_at"`

	// Position is the ordinal position within the artifact.
	Position int `json:"position"`

	// Entities are optional annotations used by entity filters.
	Entities []Entity `json:"entities,omitempty"`
}

// Sentence is a citable span of a chunk.
// It is derived on demand and never outlives its parent chunk.
type Sentence struct {
	// ID is "<chunk_id>#s<position>".
	ID string `json:"sentence_id"`

	// ChunkID links to the parent chunk.
	ChunkID string `json:"chunk_id"`

	// Text is the sentence text.
	Text string `json:"text"`

	// Offsets is relative to the chunk text.
	Offsets Offsets `json:"char_offsets"`

	// AbsoluteOffsets is relative to the artifact text.
	AbsoluteOffsets Offsets `json:"absolute_offsets"`

	// Position is the ordinal position within the chunk.
	Position int `json:"position"`
}

// SentenceMetadata carries the filterable attributes of a sentence's chunk.
type SentenceMetadata struct {
	PatientID    string    `json:"patient_id"`
	ArtifactType string    `json:"artifact_type"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// SentenceEmbedding is a cached sentence vector, keyed by SentenceID.
type SentenceEmbedding struct {
	SentenceID      string           `json:"sentence_id"`
	ChunkID         string           `json:"chunk_id"`
	ArtifactID      string           `json:"artifact_id"`
	Vector          []float32        `json:"embedding"`
	Text            string           `json:"text"`
	AbsoluteOffsets Offsets          `json:"absolute_offsets"`
	Metadata        SentenceMetadata `json:"metadata"`
}

// MetadataOf returns the sentence metadata derived from a chunk.
func MetadataOf(c *Chunk) SentenceMetadata {
	return SentenceMetadata{
		PatientID:    c.PatientID,
		ArtifactType: c.ArtifactType,
		OccurredAt:   c.OccurredAt,
	}
}

// VerifyChunks checks that every chunk's text equals the artifact text
// addressed by its offsets.
func VerifyChunks(artifact *Artifact, chunks []Chunk) error {
	for i := range chunks {
		c := &chunks[i]
		if !c.Offsets.Valid(len(artifact.Text)) {
			return fmt.Errorf("chunk %d (%s) offsets %s outside text of length %d: %w",
				i, c.ID, c.Offsets, len(artifact.Text), ErrOffsetMismatch)
		}
		if artifact.Text[c.Offsets.Start:c.Offsets.End] != c.Text {
			return fmt.Errorf("chunk %d (%s) text differs from artifact at %s: %w",
				i, c.ID, c.Offsets, ErrOffsetMismatch)
		}
	}
	return nil
}
