// Package normalisers extracts the plain text of raw clinical notes. Each
// subpackage implements the Normaliser interface for one format; the
// Registry here dispatches a note to the best normaliser for its MIME type.
//
// The extracted text becomes the artifact text that every chunk offset
// indexes into, so normalisers run once at ingest and never afterwards.
package normalisers
