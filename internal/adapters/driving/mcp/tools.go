package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

// FilterInput restricts retrieval to matching chunks.
type FilterInput struct {
	PatientID    string `json:"patient_id,omitempty" jsonschema:"restrict to one patient"`
	ArtifactID   string `json:"artifact_id,omitempty" jsonschema:"restrict to one artifact"`
	ArtifactType string `json:"artifact_type,omitempty" jsonschema:"restrict to one artifact type, e.g. progress_note"`
	EntityType   string `json:"entity_type,omitempty" jsonschema:"require an entity annotation of this type"`
	EntityText   string `json:"entity_text,omitempty" jsonschema:"require an entity whose text contains this value"`
	DateFrom     string `json:"date_from,omitempty" jsonschema:"first day to include, YYYY-MM-DD"`
	DateTo       string `json:"date_to,omitempty" jsonschema:"last day to include, YYYY-MM-DD"`
}

func (f FilterInput) toDomain() (domain.ChunkFilter, error) {
	from, err := domain.ParseDay(f.DateFrom)
	if err != nil {
		return domain.ChunkFilter{}, err
	}
	to, err := domain.ParseDay(f.DateTo)
	if err != nil {
		return domain.ChunkFilter{}, err
	}
	return domain.ChunkFilter{
		PatientID:    f.PatientID,
		ArtifactID:   f.ArtifactID,
		ArtifactType: f.ArtifactType,
		EntityType:   f.EntityType,
		EntityText:   f.EntityText,
		DateFrom:     from,
		DateTo:       to,
	}, nil
}

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query     string      `json:"query" jsonschema:"the clinical question to find supporting sentences for"`
	Filter    FilterInput `json:"filter,omitempty" jsonschema:"optional metadata filter"`
	ChunkK    int         `json:"chunk_k,omitempty" jsonschema:"candidate chunks to re-rank (default from config)"`
	SentenceK int         `json:"sentence_k,omitempty" jsonschema:"sentences to return (default from config)"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Sentences  []SentenceOutput  `json:"sentences"`
	Candidates []CandidateOutput `json:"candidates"`
	Omitted    []OmittedOutput   `json:"omitted,omitempty"`
	Partial    bool              `json:"partial"`
	Count      int               `json:"count"`
}

// SentenceOutput is one ranked sentence.
type SentenceOutput struct {
	SentenceID      string  `json:"sentence_id"`
	ChunkID         string  `json:"chunk_id"`
	ArtifactID      string  `json:"artifact_id"`
	Score           float64 `json:"score"`
	Text            string  `json:"text"`
	AbsoluteOffsets []int   `json:"absolute_offsets"`
	PatientID       string  `json:"patient_id"`
	ArtifactType    string  `json:"artifact_type"`
	OccurredAt      string  `json:"occurred_at"`
}

// CandidateOutput is one chunk that may be cited.
type CandidateOutput struct {
	ChunkID     string  `json:"chunk_id"`
	ArtifactID  string  `json:"artifact_id"`
	Score       float64 `json:"score"`
	Text        string  `json:"chunk_text"`
	CharOffsets []int   `json:"char_offsets"`
}

// OmittedOutput is a candidate chunk left out of a partial result.
type OmittedOutput struct {
	ChunkID string `json:"chunk_id"`
	Reason  string `json:"reason"`
}

// ProvenanceInput is a citation to check.
type ProvenanceInput struct {
	ArtifactID     string `json:"artifact_id,omitempty"`
	ChunkID        string `json:"chunk_id"`
	CharOffsets    []int  `json:"char_offsets,omitempty" jsonschema:"[start, end) offsets relative to the chunk text"`
	SupportingText string `json:"supporting_text"`
}

// ExtractionInput is one extracted fact with its citation.
type ExtractionInput struct {
	Type       string           `json:"type,omitempty"`
	Value      string           `json:"value,omitempty"`
	Provenance *ProvenanceInput `json:"provenance,omitempty"`
}

// ValidateInput is the input schema for the validate_citations tool.
type ValidateInput struct {
	Extractions []ExtractionInput `json:"extractions" jsonschema:"the extractions whose citations to check"`
	ChunkIDs    []string          `json:"chunk_ids" jsonschema:"the candidate chunks the extractions may cite"`
}

// IssueOutput is one validation finding.
type IssueOutput struct {
	Type            string         `json:"error_type"`
	Message         string         `json:"message"`
	ExtractionIndex int            `json:"extraction_index"`
	Details         map[string]any `json:"details,omitempty"`
}

// ValidateOutput is the output schema for the validate_citations tool.
type ValidateOutput struct {
	Valid          bool          `json:"valid"`
	ErrorCount     int           `json:"error_count"`
	WarningCount   int           `json:"warning_count"`
	ValidatedCount int           `json:"validated_count"`
	Errors         []IssueOutput `json:"errors"`
	Warnings       []IssueOutput `json:"warnings"`
	Summary        string        `json:"summary"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string      `json:"question" jsonschema:"the clinical question to answer"`
	Filter   FilterInput `json:"filter,omitempty" jsonschema:"optional metadata filter"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer          string         `json:"answer"`
	Withheld        bool           `json:"withheld"`
	Confidence      float64        `json:"confidence"`
	ConfidenceLabel string         `json:"confidence_label"`
	Reason          string         `json:"reason"`
	Validation      ValidateOutput `json:"validation"`
}

// StatsOutput is the output schema for the chunk_stats tool.
type StatsOutput struct {
	TotalChunks     int            `json:"total_chunks"`
	TotalPatients   int            `json:"total_patients"`
	TotalArtifacts  int            `json:"total_artifacts"`
	ChunksByType    map[string]int `json:"chunks_by_type"`
	OldestChunkDate string         `json:"oldest_chunk_date,omitempty"`
	NewestChunkDate string         `json:"newest_chunk_date,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Find the sentences of the clinical record that best answer a question, with exact source offsets",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "validate_citations",
		Description: "Check that every extraction cites a candidate chunk with offsets whose text matches its supporting text",
	}, s.handleValidate)

	if s.ports.Answer != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a clinical question; the answer is withheld when its citations do not check out",
		}, s.handleAsk)
	}

	if s.ports.Chunks != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "chunk_stats",
			Description: "Summarise the indexed clinical record",
		}, s.handleStats)
	}
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	filter, err := input.Filter.toDomain()
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	res, err := s.ports.Retrieval.RetrieveText(ctx, input.Query, filter, input.ChunkK, input.SentenceK)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	return nil, toRetrieveOutput(res), nil
}

func toRetrieveOutput(res *domain.RetrievalResult) RetrieveOutput {
	out := RetrieveOutput{
		Sentences:  make([]SentenceOutput, len(res.Sentences)),
		Candidates: make([]CandidateOutput, len(res.Candidates)),
		Partial:    res.Partial,
		Count:      len(res.Sentences),
	}
	for i := range res.Sentences {
		rs := &res.Sentences[i]
		out.Sentences[i] = SentenceOutput{
			SentenceID:      rs.SentenceID,
			ChunkID:         rs.ChunkID,
			ArtifactID:      rs.ArtifactID,
			Score:           rs.Score,
			Text:            rs.Text,
			AbsoluteOffsets: []int{rs.AbsoluteOffsets.Start, rs.AbsoluteOffsets.End},
			PatientID:       rs.Metadata.PatientID,
			ArtifactType:    rs.Metadata.ArtifactType,
			OccurredAt:      rs.Metadata.OccurredAt.Format(time.RFC3339),
		}
	}
	for i := range res.Candidates {
		c := &res.Candidates[i].Chunk
		out.Candidates[i] = CandidateOutput{
			ChunkID:     c.ID,
			ArtifactID:  c.ArtifactID,
			Score:       res.Candidates[i].Score,
			Text:        c.Text,
			CharOffsets: []int{c.Offsets.Start, c.Offsets.End},
		}
	}
	for _, o := range res.Omitted {
		out.Omitted = append(out.Omitted, OmittedOutput{ChunkID: o.ChunkID, Reason: o.Reason})
	}
	return out
}

// handleValidate handles the validate_citations tool invocation.
func (s *Server) handleValidate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ValidateInput,
) (*mcp.CallToolResult, ValidateOutput, error) {
	candidates := make([]domain.Chunk, 0, len(input.ChunkIDs))
	if s.ports.Chunks != nil {
		for _, id := range input.ChunkIDs {
			c, err := s.ports.Chunks.Get(ctx, id)
			if errors.Is(err, domain.ErrNotFound) {
				// Citations of unknown chunks are reported by the validator.
				continue
			}
			if err != nil {
				return nil, ValidateOutput{}, fmt.Errorf("loading chunk %s: %w", id, err)
			}
			candidates = append(candidates, *c)
		}
	}

	extractions := make([]domain.Extraction, len(input.Extractions))
	for i, e := range input.Extractions {
		extractions[i] = e.toDomain()
	}

	result := s.ports.Validator.Validate(extractions, candidates)
	return nil, s.toValidateOutput(result), nil
}

func (e ExtractionInput) toDomain() domain.Extraction {
	out := domain.Extraction{Type: e.Type, Value: e.Value}
	if e.Provenance == nil {
		return out
	}
	p := &domain.Provenance{
		ArtifactID:     e.Provenance.ArtifactID,
		ChunkID:        e.Provenance.ChunkID,
		SupportingText: e.Provenance.SupportingText,
	}
	if len(e.Provenance.CharOffsets) == 2 {
		p.Offsets = &domain.Offsets{Start: e.Provenance.CharOffsets[0], End: e.Provenance.CharOffsets[1]}
	}
	out.Provenance = p
	return out
}

func (s *Server) toValidateOutput(r domain.ValidationResult) ValidateOutput {
	return ValidateOutput{
		Valid:          r.Valid,
		ErrorCount:     r.ErrorCount,
		WarningCount:   r.WarningCount,
		ValidatedCount: r.ValidatedCount,
		Errors:         toIssueOutputs(r.Errors),
		Warnings:       toIssueOutputs(r.Warnings),
		Summary:        s.ports.Validator.Summary(r),
	}
}

func toIssueOutputs(issues []domain.ValidationIssue) []IssueOutput {
	out := make([]IssueOutput, len(issues))
	for i := range issues {
		out[i] = IssueOutput{
			Type:            string(issues[i].Type),
			Message:         issues[i].Message,
			ExtractionIndex: issues[i].ExtractionIndex,
			Details:         issues[i].Details,
		}
	}
	return out
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	filter, err := input.Filter.toDomain()
	if err != nil {
		return nil, AskOutput{}, err
	}

	answer, err := s.ports.Answer.Ask(ctx, input.Question, filter)
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		Answer:          answer.Text,
		Withheld:        answer.Withheld,
		Confidence:      answer.Confidence.Score,
		ConfidenceLabel: answer.Confidence.Label,
		Reason:          answer.Confidence.Reason,
		Validation:      s.toValidateOutput(answer.Validation),
	}, nil
}

// handleStats handles the chunk_stats tool invocation.
func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, StatsOutput, error) {
	stats, err := s.ports.Chunks.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}

	out := StatsOutput{
		TotalChunks:    stats.TotalChunks,
		TotalPatients:  stats.TotalPatients,
		TotalArtifacts: stats.TotalArtifacts,
		ChunksByType:   stats.ChunksByType,
	}
	if stats.OldestChunkDate != nil {
		out.OldestChunkDate = stats.OldestChunkDate.Format(domain.DayLayout)
	}
	if stats.NewestChunkDate != nil {
		out.NewestChunkDate = stats.NewestChunkDate.Format(domain.DayLayout)
	}
	return nil, out, nil
}
