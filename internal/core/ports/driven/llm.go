// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// LLMService provides language model completion.
// This is an optional service - when nil, answer generation is disabled.
//
// Its output for answer prompts must conform to the extraction contract:
// a JSON object with "answer" and "extractions" fields.
//
// Implementations may include:
//   - OpenAI (and OpenAI-compatible servers)
//   - Ollama (local models)
type LLMService interface {
	// Complete produces a text completion for a prompt.
	Complete(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// JSON asks the provider to constrain output to a JSON object when supported.
	JSON bool
}
