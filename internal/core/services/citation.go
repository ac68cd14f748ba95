package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driving"
)

// Ensure CitationValidator implements the interface.
var _ driving.CitationValidator = (*CitationValidator)(nil)

// CitationValidator checks that every extraction cites an exact span of a
// chunk that was shown to the model. It holds no mutable state.
type CitationValidator struct {
	strict bool
}

// CitationOption configures a CitationValidator.
type CitationOption func(*CitationValidator)

// WithStrictMode promotes whitespace and case warnings to errors.
func WithStrictMode(strict bool) CitationOption {
	return func(v *CitationValidator) {
		v.strict = strict
	}
}

// NewCitationValidator creates a citation validator.
func NewCitationValidator(opts ...CitationOption) *CitationValidator {
	v := &CitationValidator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Strict reports whether warnings are promoted to errors.
func (v *CitationValidator) Strict() bool {
	return v.strict
}

// Validate checks every extraction against the candidate chunks.
// Failures accumulate across extractions; within one extraction, checks
// stop at the first structural failure.
func (v *CitationValidator) Validate(extractions []domain.Extraction, candidates []domain.Chunk) domain.ValidationResult {
	byID := indexCandidates(candidates)

	result := domain.ValidationResult{
		ValidatedCount: len(extractions),
		Errors:         []domain.ValidationIssue{},
		Warnings:       []domain.ValidationIssue{},
	}
	for i := range extractions {
		for _, issue := range v.validate(i, &extractions[i], byID) {
			if issue.Type.IsWarning() && !v.strict {
				result.Warnings = append(result.Warnings, issue)
			} else {
				result.Errors = append(result.Errors, issue)
			}
		}
	}

	result.ErrorCount = len(result.Errors)
	result.WarningCount = len(result.Warnings)
	result.Valid = result.ErrorCount == 0
	return result
}

// ValidateSingle returns the issues found for one extraction. Warning
// types are returned as found; strict promotion happens in Validate.
func (v *CitationValidator) ValidateSingle(
	index int, extraction domain.Extraction, candidates []domain.Chunk,
) []domain.ValidationIssue {
	return v.validate(index, &extraction, indexCandidates(candidates))
}

func (v *CitationValidator) validate(
	index int, ext *domain.Extraction, byID map[string]*domain.Chunk,
) []domain.ValidationIssue {
	if issue := v.ValidateProvenance(index, ext.Provenance); issue != nil {
		return []domain.ValidationIssue{*issue}
	}
	p := ext.Provenance

	chunk, ok := byID[p.ChunkID]
	if !ok {
		return []domain.ValidationIssue{{
			Type:            domain.IssueInvalidChunkReference,
			Message:         fmt.Sprintf("chunk %q was not among the retrieved candidates", p.ChunkID),
			ExtractionIndex: index,
			Details:         map[string]any{"chunk_id": p.ChunkID},
		}}
	}

	if p.ArtifactID != "" && p.ArtifactID != chunk.ArtifactID {
		return []domain.ValidationIssue{{
			Type:            domain.IssueArtifactMismatch,
			Message:         fmt.Sprintf("chunk %q belongs to artifact %q, not %q", chunk.ID, chunk.ArtifactID, p.ArtifactID),
			ExtractionIndex: index,
			Details:         map[string]any{"expected": chunk.ArtifactID, "actual": p.ArtifactID},
		}}
	}

	if issue := v.ValidateCharOffsets(index, p.Offsets, chunk.Text); issue != nil {
		return []domain.ValidationIssue{*issue}
	}

	if issue := v.ValidateTextMatch(index, chunk.Text, *p.Offsets, p.SupportingText); issue != nil {
		return []domain.ValidationIssue{*issue}
	}
	return nil
}

// ValidateProvenance reports a missing_provenance issue when the extraction
// carries no citation or the citation names no chunk.
func (v *CitationValidator) ValidateProvenance(index int, p *domain.Provenance) *domain.ValidationIssue {
	if p != nil && strings.TrimSpace(p.ChunkID) != "" {
		return nil
	}
	return &domain.ValidationIssue{
		Type:            domain.IssueMissingProvenance,
		Message:         "extraction has no provenance",
		ExtractionIndex: index,
	}
}

// ValidateCharOffsets reports an invalid_offsets issue when off is missing,
// empty, reversed or outside chunkText.
func (v *CitationValidator) ValidateCharOffsets(index int, off *domain.Offsets, chunkText string) *domain.ValidationIssue {
	if off == nil {
		return &domain.ValidationIssue{
			Type:            domain.IssueInvalidOffsets,
			Message:         "provenance has no char_offsets",
			ExtractionIndex: index,
			Details:         map[string]any{"offsets": nil, "text_length": len(chunkText)},
		}
	}
	if off.Valid(len(chunkText)) {
		return nil
	}
	return &domain.ValidationIssue{
		Type: domain.IssueInvalidOffsets,
		Message: fmt.Sprintf("offsets %s are outside the chunk text of length %d",
			off, len(chunkText)),
		ExtractionIndex: index,
		Details: map[string]any{
			"offsets":     []int{off.Start, off.End},
			"text_length": len(chunkText),
		},
	}
}

// ValidateTextMatch compares the span of chunkText addressed by off with
// supporting. An exact match returns nil. A match after whitespace
// normalisation or case folding returns a warning; anything else returns
// a text_mismatch error. off must already be valid for chunkText.
func (v *CitationValidator) ValidateTextMatch(
	index int, chunkText string, off domain.Offsets, supporting string,
) *domain.ValidationIssue {
	expected := off.Slice(chunkText)
	if expected == supporting {
		return nil
	}

	details := map[string]any{"expected": expected, "actual": supporting}
	ne, na := collapseSpace(expected), collapseSpace(supporting)

	switch {
	case ne == na:
		return &domain.ValidationIssue{
			Type:            domain.IssueWhitespaceMismatch,
			Message:         "supporting text differs from the cited span only in whitespace",
			ExtractionIndex: index,
			Details:         details,
		}
	case strings.EqualFold(ne, na):
		return &domain.ValidationIssue{
			Type:            domain.IssueCaseMismatch,
			Message:         "supporting text differs from the cited span only in letter case",
			ExtractionIndex: index,
			Details:         details,
		}
	default:
		return &domain.ValidationIssue{
			Type:            domain.IssueTextMismatch,
			Message:         "supporting text does not match the cited span",
			ExtractionIndex: index,
			Details:         details,
		}
	}
}

// Summary renders a one-line description of a validation result.
func (v *CitationValidator) Summary(result domain.ValidationResult) string {
	status := "valid"
	if !result.Valid {
		status = "invalid"
	}
	s := fmt.Sprintf("%s: %d extraction(s) checked, %d error(s), %d warning(s)",
		status, result.ValidatedCount, result.ErrorCount, result.WarningCount)

	counts := v.GroupByType(result)
	if len(counts) == 0 {
		return s
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = fmt.Sprintf("%s=%d", t, len(counts[domain.IssueType(t)]))
	}
	return s + " [" + strings.Join(parts, " ") + "]"
}

// GroupByType buckets every error and warning of result by issue type.
func (v *CitationValidator) GroupByType(result domain.ValidationResult) map[domain.IssueType][]domain.ValidationIssue {
	groups := make(map[domain.IssueType][]domain.ValidationIssue)
	for _, issue := range result.Errors {
		groups[issue.Type] = append(groups[issue.Type], issue)
	}
	for _, issue := range result.Warnings {
		groups[issue.Type] = append(groups[issue.Type], issue)
	}
	return groups
}

func indexCandidates(candidates []domain.Chunk) map[string]*domain.Chunk {
	byID := make(map[string]*domain.Chunk, len(candidates))
	for i := range candidates {
		byID[candidates[i].ID] = &candidates[i]
	}
	return byID
}

// collapseSpace trims s and replaces every internal whitespace run with a
// single space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
