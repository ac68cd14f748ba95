package domain

import "math"

// RetrievedSentence is one ranked sentence returned by two-pass retrieval.
type RetrievedSentence struct {
	SentenceID      string           `json:"sentence_id"`
	ChunkID         string           `json:"chunk_id"`
	ArtifactID      string           `json:"artifact_id"`
	Score           float64          `json:"score"`
	Text            string           `json:"text"`
	AbsoluteOffsets Offsets          `json:"absolute_offsets"`
	Metadata        SentenceMetadata `json:"metadata"`
}

// ChunkCandidate is a pass-1 chunk with its coarse similarity.
type ChunkCandidate struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// OmittedChunk records a candidate whose sentences could not be embedded.
type OmittedChunk struct {
	ChunkID string `json:"chunk_id"`
	Reason  string `json:"reason"`
}

// RetrievalResult is the outcome of a two-pass retrieval.
// Partial is true whenever Omitted is non-empty.
type RetrievalResult struct {
	Sentences  []RetrievedSentence `json:"sentences"`
	Candidates []ChunkCandidate    `json:"candidates"`
	Omitted    []OmittedChunk      `json:"omitted,omitempty"`
	Partial    bool                `json:"partial"`
}

// CandidateChunks returns the pass-1 chunks, the set an answer may cite.
func (r *RetrievalResult) CandidateChunks() []Chunk {
	out := make([]Chunk, len(r.Candidates))
	for i := range r.Candidates {
		out[i] = r.Candidates[i].Chunk
	}
	return out
}

// SimilarityFunc scores two vectors; higher is more similar.
type SimilarityFunc func(a, b []float32) float64

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
