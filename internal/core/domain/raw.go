package domain

import (
	"path/filepath"
	"strings"
)

// RawNote is a clinical document as read from disk, before its text is
// extracted. Structured artifact files skip this stage.
type RawNote struct {
	// URI is the original location (file path, URL, etc).
	URI string

	// MIMEType is the content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte
}

// Name returns a human-readable name derived from the URI: the file name
// without its extension, with underscores and dashes as spaces.
func (r *RawNote) Name() string {
	name := filepath.Base(r.URI)
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ReplaceAll(name, "-", " ")
}
