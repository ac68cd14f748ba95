package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrOffsetMismatch indicates a chunk's text does not equal the artifact
	// substring addressed by its offsets.
	ErrOffsetMismatch = errors.New("offset mismatch")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Answer generation is disabled without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Ingestion and retrieval both require embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrRateLimited indicates a provider rejected a call with HTTP 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrMalformedResponse indicates model output that is not the expected JSON.
	ErrMalformedResponse = errors.New("malformed model response")

	// ErrUnsupportedType indicates an unknown provider type in configuration.
	ErrUnsupportedType = errors.New("unsupported type")
)

// ChunkValidationError describes a malformed chunk rejected at ingestion.
// It is recorded per item; the surrounding batch continues.
type ChunkValidationError struct {
	// ChunkID is the offending chunk's ID (may be empty when that is the problem).
	ChunkID string

	// Index is the chunk's position in the submitted batch.
	Index int

	// Field names the missing or inconsistent field.
	Field string

	// Reason is a short human-readable explanation.
	Reason string
}

func (e *ChunkValidationError) Error() string {
	if e.ChunkID == "" {
		return fmt.Sprintf("chunk[%d]: %s: %s", e.Index, e.Field, e.Reason)
	}
	return fmt.Sprintf("chunk %s: %s: %s", e.ChunkID, e.Field, e.Reason)
}

// Unwrap lets callers match ChunkValidationError with ErrInvalidInput.
func (e *ChunkValidationError) Unwrap() error {
	return ErrInvalidInput
}

// ProviderError wraps a failure of an external embedding or LLM call.
// Provider errors are propagated to the caller and never retried internally.
type ProviderError struct {
	// Provider is the adapter name (e.g. "ollama", "openai").
	Provider string

	// Op is the failed operation (e.g. "embed", "complete").
	Op string

	// Err is the underlying error.
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
