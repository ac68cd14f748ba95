// Package tui provides an interactive terminal user interface for cliniq.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/cliniq/internal/core/ports/driving"
)

// Ports aggregates the driving ports the TUI needs.
type Ports struct {
	// Retrieval ranks sentences for a query.
	Retrieval driving.RetrievalService

	// Chunks opens the chunk behind a sentence.
	Chunks driving.ChunkService
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(retrieval driving.RetrievalService, chunks driving.ChunkService) *Ports {
	return &Ports{
		Retrieval: retrieval,
		Chunks:    chunks,
	}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	if p.Chunks == nil {
		return ErrMissingChunkService
	}
	return nil
}
