package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

const metforminText = "Patient prescribed Metformin 500mg twice daily for Type 2 Diabetes. Labs pending."

func metforminChunk() domain.Chunk {
	return domain.Chunk{
		ID:           "chunk-1",
		ArtifactID:   "note-1",
		PatientID:    "p1",
		ArtifactType: "progress_note",
		Text:         metforminText,
		Offsets:      domain.Offsets{Start: 0, End: len(metforminText)},
		OccurredAt:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func cite(chunkID string, start, end int, text string) domain.Extraction {
	return domain.Extraction{
		Type:  "medication",
		Value: "metformin",
		Provenance: &domain.Provenance{
			ArtifactID:     "note-1",
			ChunkID:        chunkID,
			Offsets:        &domain.Offsets{Start: start, End: end},
			SupportingText: text,
		},
	}
}

func TestCitationValidator_ExactMatch(t *testing.T) {
	require.Len(t, metforminText, 81)
	v := NewCitationValidator()

	result := v.Validate(
		[]domain.Extraction{cite("chunk-1", 18, 47, metforminText[18:47])},
		[]domain.Chunk{metforminChunk()},
	)

	assert.True(t, result.Valid)
	assert.Equal(t, 0, result.ErrorCount)
	assert.Equal(t, 0, result.WarningCount)
	assert.Equal(t, 1, result.ValidatedCount)
}

func TestCitationValidator_OffsetsOutOfRange(t *testing.T) {
	v := NewCitationValidator()

	result := v.Validate(
		[]domain.Extraction{cite("chunk-1", 500, 600, "Metformin")},
		[]domain.Chunk{metforminChunk()},
	)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	issue := result.Errors[0]
	assert.Equal(t, domain.IssueInvalidOffsets, issue.Type)
	assert.Equal(t, 81, issue.Details["text_length"])
	assert.Equal(t, []int{500, 600}, issue.Details["offsets"])
}

func TestCitationValidator_CaseMismatchIsWarning(t *testing.T) {
	v := NewCitationValidator()

	result := v.Validate(
		[]domain.Extraction{cite("chunk-1", 19, 46, "METFORMIN 500MG TWICE DAILY")},
		[]domain.Chunk{metforminChunk()},
	)

	assert.True(t, result.Valid)
	assert.Equal(t, 0, result.ErrorCount)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, domain.IssueCaseMismatch, result.Warnings[0].Type)
	assert.Equal(t, "Metformin 500mg twice daily", result.Warnings[0].Details["expected"])
}

func TestCitationValidator_Checks(t *testing.T) {
	tests := []struct {
		name       string
		extraction domain.Extraction
		wantType   domain.IssueType
		wantError  bool
	}{
		{
			name:       "missing provenance",
			extraction: domain.Extraction{Type: "medication", Value: "metformin"},
			wantType:   domain.IssueMissingProvenance,
			wantError:  true,
		},
		{
			name:       "blank chunk id",
			extraction: cite("  ", 19, 28, "Metformin"),
			wantType:   domain.IssueMissingProvenance,
			wantError:  true,
		},
		{
			name:       "unknown chunk",
			extraction: cite("chunk-9", 19, 28, "Metformin"),
			wantType:   domain.IssueInvalidChunkReference,
			wantError:  true,
		},
		{
			name: "artifact mismatch",
			extraction: func() domain.Extraction {
				e := cite("chunk-1", 19, 28, "Metformin")
				e.Provenance.ArtifactID = "note-2"
				return e
			}(),
			wantType:  domain.IssueArtifactMismatch,
			wantError: true,
		},
		{
			name: "missing offsets",
			extraction: func() domain.Extraction {
				e := cite("chunk-1", 19, 28, "Metformin")
				e.Provenance.Offsets = nil
				return e
			}(),
			wantType:  domain.IssueInvalidOffsets,
			wantError: true,
		},
		{
			name:       "reversed offsets",
			extraction: cite("chunk-1", 28, 19, "Metformin"),
			wantType:   domain.IssueInvalidOffsets,
			wantError:  true,
		},
		{
			name:       "empty span",
			extraction: cite("chunk-1", 19, 19, ""),
			wantType:   domain.IssueInvalidOffsets,
			wantError:  true,
		},
		{
			name:       "negative start",
			extraction: cite("chunk-1", -1, 10, "Patient pr"),
			wantType:   domain.IssueInvalidOffsets,
			wantError:  true,
		},
		{
			name:       "text mismatch",
			extraction: cite("chunk-1", 19, 28, "Insulin"),
			wantType:   domain.IssueTextMismatch,
			wantError:  true,
		},
		{
			name:       "whitespace drift",
			extraction: cite("chunk-1", 18, 47, "Metformin  500mg\ttwice daily"),
			wantType:   domain.IssueWhitespaceMismatch,
		},
		{
			name:       "empty artifact id is accepted",
			extraction: func() domain.Extraction { e := cite("chunk-1", 19, 28, "Metformin"); e.Provenance.ArtifactID = ""; return e }(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewCitationValidator()
			result := v.Validate([]domain.Extraction{tt.extraction}, []domain.Chunk{metforminChunk()})

			switch {
			case tt.wantType == "":
				assert.True(t, result.Valid)
				assert.Empty(t, result.Errors)
				assert.Empty(t, result.Warnings)
			case tt.wantError:
				assert.False(t, result.Valid)
				require.Len(t, result.Errors, 1, "checks stop at the first structural failure")
				assert.Equal(t, tt.wantType, result.Errors[0].Type)
			default:
				assert.True(t, result.Valid)
				require.Len(t, result.Warnings, 1)
				assert.Equal(t, tt.wantType, result.Warnings[0].Type)
			}
		})
	}
}

func TestCitationValidator_AccumulatesAcrossExtractions(t *testing.T) {
	v := NewCitationValidator()
	extractions := []domain.Extraction{
		cite("chunk-1", 19, 28, "Metformin"),
		{Type: "diagnosis"},
		cite("chunk-1", 19, 46, "metformin 500mg twice daily"),
		cite("chunk-2", 0, 4, "Labs"),
	}

	result := v.Validate(extractions, []domain.Chunk{metforminChunk()})

	assert.False(t, result.Valid)
	assert.Equal(t, 4, result.ValidatedCount)
	assert.Equal(t, 2, result.ErrorCount)
	assert.Equal(t, 1, result.WarningCount)
	assert.Equal(t, 1, result.Errors[0].ExtractionIndex)
	assert.Equal(t, 3, result.Errors[1].ExtractionIndex)
	assert.Equal(t, 2, result.Warnings[0].ExtractionIndex)
}

func TestCitationValidator_UnknownChunkAlwaysReported(t *testing.T) {
	v := NewCitationValidator()
	candidates := []domain.Chunk{metforminChunk()}

	// Whatever the offsets and text, a chunk outside the candidate set is
	// reported as an invalid reference.
	for _, e := range []domain.Extraction{
		cite("other", 19, 28, "Metformin"),
		cite("other", 500, 600, ""),
		cite("other", 5, 1, "nothing"),
	} {
		result := v.Validate([]domain.Extraction{e}, candidates)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, domain.IssueInvalidChunkReference, result.Errors[0].Type)
	}
}

func TestCitationValidator_Idempotent(t *testing.T) {
	v := NewCitationValidator()
	extractions := []domain.Extraction{
		cite("chunk-1", 19, 28, "Metformin"),
		cite("chunk-1", 19, 46, "METFORMIN 500MG TWICE DAILY"),
		cite("chunk-1", 500, 600, "x"),
		{Type: "diagnosis"},
	}
	candidates := []domain.Chunk{metforminChunk()}

	first := v.Validate(extractions, candidates)
	second := v.Validate(extractions, candidates)

	assert.Equal(t, first, second)
}

func TestCitationValidator_StrictMode(t *testing.T) {
	v := NewCitationValidator(WithStrictMode(true))
	assert.True(t, v.Strict())

	result := v.Validate(
		[]domain.Extraction{cite("chunk-1", 19, 46, "METFORMIN 500MG TWICE DAILY")},
		[]domain.Chunk{metforminChunk()},
	)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, domain.IssueCaseMismatch, result.Errors[0].Type)
	assert.Empty(t, result.Warnings)
}

func TestCitationValidator_SubOperations(t *testing.T) {
	v := NewCitationValidator()

	assert.Nil(t, v.ValidateProvenance(0, &domain.Provenance{ChunkID: "c"}))
	assert.Equal(t, domain.IssueMissingProvenance, v.ValidateProvenance(3, nil).Type)
	assert.Equal(t, 3, v.ValidateProvenance(3, nil).ExtractionIndex)

	assert.Nil(t, v.ValidateCharOffsets(0, &domain.Offsets{Start: 0, End: 81}, metforminText))
	outside := v.ValidateCharOffsets(0, &domain.Offsets{Start: 0, End: 82}, metforminText)
	require.NotNil(t, outside)
	assert.Equal(t, domain.IssueInvalidOffsets, outside.Type)
	assert.Contains(t, outside.Message, "offsets [0,82) are outside")

	assert.Nil(t, v.ValidateTextMatch(0, metforminText, domain.Offsets{Start: 68, End: 72}, "Labs"))
	issue := v.ValidateTextMatch(0, metforminText, domain.Offsets{Start: 68, End: 72}, "Lab")
	require.NotNil(t, issue)
	assert.Equal(t, domain.IssueTextMismatch, issue.Type)
	assert.Equal(t, map[string]any{"expected": "Labs", "actual": "Lab"}, issue.Details)

	issues := v.ValidateSingle(0, cite("chunk-1", 19, 46, "metformin 500mg twice daily"), []domain.Chunk{metforminChunk()})
	require.Len(t, issues, 1)
	assert.Equal(t, domain.IssueCaseMismatch, issues[0].Type)
}

func TestCitationValidator_SummaryAndGroupByType(t *testing.T) {
	v := NewCitationValidator()
	result := v.Validate([]domain.Extraction{
		{Type: "a"},
		{Type: "b"},
		cite("chunk-1", 19, 46, "metformin 500mg twice daily"),
	}, []domain.Chunk{metforminChunk()})

	groups := v.GroupByType(result)
	assert.Len(t, groups[domain.IssueMissingProvenance], 2)
	assert.Len(t, groups[domain.IssueCaseMismatch], 1)

	assert.Equal(t,
		"invalid: 3 extraction(s) checked, 2 error(s), 1 warning(s) [case_mismatch=1 missing_provenance=2]",
		v.Summary(result))

	empty := v.Validate(nil, nil)
	assert.True(t, empty.Valid)
	assert.Equal(t, "valid: 0 extraction(s) checked, 0 error(s), 0 warning(s)", v.Summary(empty))
}
