package driven

import (
	"context"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

// Normaliser extracts the plain text of a raw clinical note.
// Each normaliser handles specific MIME types (e.g., PDF, Markdown).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise extracts the text of a raw note.
	Normalise(ctx context.Context, raw *domain.RawNote) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation.
// Text becomes the artifact text that every chunk offset indexes into,
// so it is never rewritten after this point.
type NormaliseResult struct {
	// Text is the extracted plain text.
	Text string

	// Title is the document title, or a name derived from the URI.
	Title string

	// Format names the normaliser that produced the text ("markdown", "pdf").
	Format string
}
