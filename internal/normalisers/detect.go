package normalisers

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/custodia-labs/cliniq/internal/normalisers/docx"
)

// extensionTypes maps note file extensions to MIME types. Content sniffing
// cannot tell markdown from plain text, so known extensions win.
var extensionTypes = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".csv":      "text/csv",
	".tsv":      "text/tab-separated-values",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".htm":      "text/html",
	".html":     "text/html",
	".xhtml":    "application/xhtml+xml",
	".docx":     docx.MIMEType,
	".pdf":      "application/pdf",
}

// IsNoteFile reports whether path has the extension of a raw note format.
func IsNoteFile(path string) bool {
	_, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// DetectMIMEType returns the MIME type of a note from its file extension,
// falling back to sniffing the content.
func DetectMIMEType(path string, content []byte) string {
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return BaseMIMEType(mimetype.Detect(content).String())
}

// BaseMIMEType strips parameters such as "; charset=utf-8" and lowercases
// the type.
func BaseMIMEType(t string) string {
	base, _, _ := strings.Cut(t, ";")
	return strings.ToLower(strings.TrimSpace(base))
}
