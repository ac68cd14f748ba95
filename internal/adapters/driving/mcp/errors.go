// Package mcp provides an MCP (Model Context Protocol) server adapter for cliniq.
// It lets AI assistants retrieve cited sentences from the clinical corpus and
// check their own citations before answering.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")

// ErrMissingValidator is returned when the citation validator is not provided.
var ErrMissingValidator = errors.New("mcp: citation validator is required")
