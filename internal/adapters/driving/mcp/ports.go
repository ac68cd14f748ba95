package mcp

import (
	"github.com/custodia-labs/cliniq/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval ranks citable sentences.
	Retrieval driving.RetrievalService

	// Validator checks extraction citations.
	Validator driving.CitationValidator

	// Chunks browses the chunk store. Optional.
	Chunks driving.ChunkService

	// Answer produces validated answers. Optional; requires an LLM.
	Answer driving.AnswerService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	if p.Validator == nil {
		return ErrMissingValidator
	}
	return nil
}
