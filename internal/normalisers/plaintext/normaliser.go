// Package plaintext provides the fallback Normaliser for plain text notes.
package plaintext

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text notes.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
		"text/tab-separated-values",
		"text/x-log",
		"text/markdown",
		"text/html",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise returns the note's bytes as text with line endings unified
// and any byte order mark removed.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawNote) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	text, err := DecodeText(raw.Content)
	if err != nil {
		return nil, err
	}

	return &driven.NormaliseResult{
		Text:   text,
		Title:  raw.Name(),
		Format: "text",
	}, nil
}

// DecodeText validates UTF-8 content, drops a leading byte order mark and
// converts CRLF and lone CR line endings to LF.
func DecodeText(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: content is not valid UTF-8", domain.ErrInvalidInput)
	}
	text := strings.TrimPrefix(string(content), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n"), nil
}
