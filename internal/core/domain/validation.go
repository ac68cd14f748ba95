package domain

// IssueType classifies a citation validation finding.
type IssueType string

// Error issue types. Any of these invalidates a result.
const (
	IssueMissingProvenance     IssueType = "missing_provenance"
	IssueInvalidChunkReference IssueType = "invalid_chunk_reference"
	IssueInvalidOffsets        IssueType = "invalid_offsets"
	IssueTextMismatch          IssueType = "text_mismatch"
	IssueArtifactMismatch      IssueType = "artifact_mismatch"
)

// Warning issue types. Tolerated textual drift.
const (
	IssueWhitespaceMismatch IssueType = "whitespace_mismatch"
	IssueCaseMismatch       IssueType = "case_mismatch"
)

// ValidationIssue is one error or warning about one extraction.
type ValidationIssue struct {
	Type            IssueType      `json:"error_type"`
	Message         string         `json:"message"`
	ExtractionIndex int            `json:"extraction_index"`
	Details         map[string]any `json:"details,omitempty"`
}

// ValidationResult aggregates the findings for a batch of extractions.
// Callers must withhold or flag any answer for which Valid is false.
type ValidationResult struct {
	Valid          bool              `json:"valid"`
	ErrorCount     int               `json:"error_count"`
	WarningCount   int               `json:"warning_count"`
	ValidatedCount int               `json:"validated_count"`
	Errors         []ValidationIssue `json:"errors"`
	Warnings       []ValidationIssue `json:"warnings"`
}

// IsWarning returns true for issue types that tolerate textual drift.
func (t IssueType) IsWarning() bool {
	return t == IssueWhitespaceMismatch || t == IssueCaseMismatch
}
