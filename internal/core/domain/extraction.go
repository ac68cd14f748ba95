package domain

// Provenance is the claim that a piece of extracted information came from
// a specific span of a specific chunk.
type Provenance struct {
	// ArtifactID is the artifact the cited chunk belongs to.
	ArtifactID string `json:"artifact_id"`

	// ChunkID is the cited chunk. It must be one of the chunks shown to the model.
	ChunkID string `json:"chunk_id"`

	// Offsets is relative to the cited chunk text.
	Offsets *Offsets `json:"char_offsets,omitempty"`

	// SupportingText must equal the chunk text addressed by Offsets.
	SupportingText string `json:"supporting_text"`

	// Confidence is the model's optional self-reported confidence.
	Confidence *float64 `json:"confidence,omitempty"`
}

// Extraction is one structured fact produced by the language model.
type Extraction struct {
	// Type is the kind of fact (e.g. "medication", "diagnosis").
	Type string `json:"type,omitempty"`

	// Value is the extracted value.
	Value string `json:"value,omitempty"`

	// Provenance grounds the extraction. Nil means no citation was given.
	Provenance *Provenance `json:"provenance,omitempty"`
}
