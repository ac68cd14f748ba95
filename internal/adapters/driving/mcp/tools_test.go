package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/services"
)

const noteText = "Patient prescribed Metformin 500mg twice daily for Type 2 Diabetes. Labs pending."

func noteChunk() domain.Chunk {
	return domain.Chunk{
		ID:           "chunk-1",
		ArtifactID:   "note-1",
		PatientID:    "p1",
		ArtifactType: "progress_note",
		Text:         noteText,
		Offsets:      domain.Offsets{Start: 0, End: len(noteText)},
		OccurredAt:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	if ports.Retrieval == nil {
		ports.Retrieval = &mockRetrievalService{}
	}
	if ports.Validator == nil {
		ports.Validator = services.NewCitationValidator()
	}
	server, err := NewServer(ports)
	require.NoError(t, err)
	return server
}

func TestServer_handleRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns ranked sentences", func(t *testing.T) {
		c := noteChunk()
		retrieval := &mockRetrievalService{result: &domain.RetrievalResult{
			Candidates: []domain.ChunkCandidate{{Chunk: c, Score: 0.7}},
			Sentences: []domain.RetrievedSentence{{
				SentenceID:      "chunk-1#s0",
				ChunkID:         "chunk-1",
				ArtifactID:      "note-1",
				Score:           0.91,
				Text:            noteText[:67],
				AbsoluteOffsets: domain.Offsets{Start: 0, End: 67},
				Metadata:        domain.MetadataOf(&c),
			}},
			Omitted: []domain.OmittedChunk{{ChunkID: "chunk-2", Reason: "timed out"}},
			Partial: true,
		}}
		server := newTestServer(t, &Ports{Retrieval: retrieval})

		input := RetrieveInput{
			Query:  "metformin dose",
			Filter: FilterInput{PatientID: "p1", DateFrom: "2024-01-01", DateTo: "2024-12-31"},
		}
		_, output, err := server.handleRetrieve(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, "metformin dose", retrieval.query)
		assert.Equal(t, "p1", retrieval.filter.PatientID)
		require.NotNil(t, retrieval.filter.DateFrom)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *retrieval.filter.DateFrom)

		assert.Equal(t, 1, output.Count)
		assert.True(t, output.Partial)
		require.Len(t, output.Sentences, 1)
		assert.Equal(t, "chunk-1#s0", output.Sentences[0].SentenceID)
		assert.Equal(t, []int{0, 67}, output.Sentences[0].AbsoluteOffsets)
		assert.Equal(t, "2024-03-01T09:00:00Z", output.Sentences[0].OccurredAt)
		require.Len(t, output.Candidates, 1)
		assert.Equal(t, []int{0, 81}, output.Candidates[0].CharOffsets)
		require.Len(t, output.Omitted, 1)
		assert.Equal(t, "chunk-2", output.Omitted[0].ChunkID)
	})

	t.Run("rejects malformed dates", func(t *testing.T) {
		server := newTestServer(t, &Ports{})

		_, _, err := server.handleRetrieve(ctx, nil, RetrieveInput{
			Query:  "q",
			Filter: FilterInput{DateFrom: "03/01/2024"},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("returns error on retrieval failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{Retrieval: &mockRetrievalService{err: errors.New("index offline")}})

		_, _, err := server.handleRetrieve(ctx, nil, RetrieveInput{Query: "q"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "index offline")
	})
}

func TestServer_handleValidate(t *testing.T) {
	ctx := context.Background()
	chunks := &mockChunkService{chunks: map[string]domain.Chunk{"chunk-1": noteChunk()}}

	t.Run("valid citation", func(t *testing.T) {
		server := newTestServer(t, &Ports{Chunks: chunks})

		_, output, err := server.handleValidate(ctx, nil, ValidateInput{
			ChunkIDs: []string{"chunk-1"},
			Extractions: []ExtractionInput{{
				Type:  "medication",
				Value: "metformin",
				Provenance: &ProvenanceInput{
					ArtifactID:     "note-1",
					ChunkID:        "chunk-1",
					CharOffsets:    []int{19, 28},
					SupportingText: "Metformin",
				},
			}},
		})

		require.NoError(t, err)
		assert.True(t, output.Valid)
		assert.Equal(t, 1, output.ValidatedCount)
		assert.Empty(t, output.Errors)
		assert.Equal(t, "valid: 1 extraction(s) checked, 0 error(s), 0 warning(s)", output.Summary)
	})

	t.Run("reports each failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{Chunks: chunks})

		_, output, err := server.handleValidate(ctx, nil, ValidateInput{
			ChunkIDs: []string{"chunk-1", "chunk-gone"},
			Extractions: []ExtractionInput{
				{Type: "medication"},
				{Provenance: &ProvenanceInput{ChunkID: "chunk-gone", CharOffsets: []int{0, 4}, SupportingText: "Labs"}},
				{Provenance: &ProvenanceInput{ChunkID: "chunk-1", CharOffsets: []int{500, 600}, SupportingText: "x"}},
				{Provenance: &ProvenanceInput{ChunkID: "chunk-1", SupportingText: "Labs"}},
				{Provenance: &ProvenanceInput{ChunkID: "chunk-1", CharOffsets: []int{19, 28}, SupportingText: "METFORMIN"}},
			},
		})

		require.NoError(t, err)
		assert.False(t, output.Valid)
		assert.Equal(t, 4, output.ErrorCount)
		assert.Equal(t, 1, output.WarningCount)
		types := make([]string, len(output.Errors))
		for i := range output.Errors {
			types[i] = output.Errors[i].Type
		}
		assert.Equal(t, []string{
			"missing_provenance", "invalid_chunk_reference", "invalid_offsets", "invalid_offsets",
		}, types)
		assert.Equal(t, "case_mismatch", output.Warnings[0].Type)
	})

	t.Run("without chunk service every citation is unknown", func(t *testing.T) {
		server := newTestServer(t, &Ports{})

		_, output, err := server.handleValidate(ctx, nil, ValidateInput{
			ChunkIDs: []string{"chunk-1"},
			Extractions: []ExtractionInput{{
				Provenance: &ProvenanceInput{ChunkID: "chunk-1", CharOffsets: []int{19, 28}, SupportingText: "Metformin"},
			}},
		})

		require.NoError(t, err)
		require.Len(t, output.Errors, 1)
		assert.Equal(t, "invalid_chunk_reference", output.Errors[0].Type)
	})

	t.Run("chunk lookup failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{Chunks: &mockChunkService{err: errors.New("store closed")}})

		_, _, err := server.handleValidate(ctx, nil, ValidateInput{ChunkIDs: []string{"chunk-1"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "loading chunk")
	})
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answer", func(t *testing.T) {
		answer := &mockAnswerService{answer: &domain.Answer{
			Text:       "Metformin 500mg twice daily.",
			Validation: domain.ValidationResult{Valid: true, ValidatedCount: 1},
			Confidence: domain.ConfidenceScore{Score: 0.83, Label: domain.ConfidenceHigh, Reason: "high confidence"},
		}}
		server := newTestServer(t, &Ports{Answer: answer})

		_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "What medication?"})
		require.NoError(t, err)
		assert.Equal(t, "Metformin 500mg twice daily.", output.Answer)
		assert.False(t, output.Withheld)
		assert.Equal(t, 0.83, output.Confidence)
		assert.Equal(t, "high", output.ConfidenceLabel)
		assert.True(t, output.Validation.Valid)
	})

	t.Run("withheld answer has no text", func(t *testing.T) {
		answer := &mockAnswerService{answer: &domain.Answer{
			Withheld: true,
			Draft:    "ungrounded",
			Validation: domain.ValidationResult{
				ErrorCount: 1,
				Errors:     []domain.ValidationIssue{{Type: domain.IssueTextMismatch}},
			},
		}}
		server := newTestServer(t, &Ports{Answer: answer})

		_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "q"})
		require.NoError(t, err)
		assert.True(t, output.Withheld)
		assert.Empty(t, output.Answer)
		assert.Equal(t, "text_mismatch", output.Validation.Errors[0].Type)
	})

	t.Run("returns error on failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{Answer: &mockAnswerService{err: domain.ErrLLMUnavailable}})

		_, _, err := server.handleAsk(ctx, nil, AskInput{Question: "q"})
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	})
}

func TestServer_handleStats(t *testing.T) {
	oldest := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	newest := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	chunks := &mockChunkService{stats: domain.StoreStatistics{
		TotalChunks:     12,
		TotalPatients:   2,
		TotalArtifacts:  5,
		ChunksByType:    map[string]int{"progress_note": 10, "lab_report": 2},
		OldestChunkDate: &oldest,
		NewestChunkDate: &newest,
	}}
	server := newTestServer(t, &Ports{Chunks: chunks})

	_, output, err := server.handleStats(context.Background(), nil, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, 12, output.TotalChunks)
	assert.Equal(t, 2, output.ChunksByType["lab_report"])
	assert.Equal(t, "2023-05-01", output.OldestChunkDate)
	assert.Equal(t, "2024-03-01", output.NewestChunkDate)
}
