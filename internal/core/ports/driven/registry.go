package driven

import (
	"context"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

// NormaliserRegistry selects the appropriate normaliser for a raw note.
// It maintains a priority-ordered list of normalisers and dispatches
// on MIME type.
type NormaliserRegistry interface {
	// Normalise extracts text using the highest priority normaliser
	// for the note's MIME type.
	Normalise(ctx context.Context, raw *domain.RawNote) (*NormaliseResult, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// SupportedMIMETypes returns all MIME types that can be normalised.
	SupportedMIMETypes() []string
}
