package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

const (
	// URIScheme is the custom URI scheme for cliniq resources.
	uriScheme = "cliniq://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	if s.ports.Chunks == nil {
		return
	}

	// Template for a chunk with its sentences.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "chunks/{chunkId}",
		Name:        "chunk",
		Description: "A chunk with its citable sentences and offsets",
		MIMEType:    "application/json",
	}, s.handleChunkResource)

	// Template for artifact text.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "artifacts/{artifactId}",
		Name:        "artifact-text",
		Description: "Full text of an ingested artifact; chunk offsets index into it",
		MIMEType:    "text/plain",
	}, s.handleArtifactResource)
}

// handleChunkResource returns a chunk with its sentences.
func (s *Server) handleChunkResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract chunkId from URI: cliniq://chunks/{chunkId}
	chunkID := extractID(req.Params.URI, "chunks/")
	if chunkID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	details, err := s.ports.Chunks.GetDetails(ctx, chunkID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting chunk: %w", err)
	}

	data, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling chunk: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleArtifactResource returns the text of an artifact.
func (s *Server) handleArtifactResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract artifactId from URI: cliniq://artifacts/{artifactId}
	artifactID := extractID(req.Params.URI, "artifacts/")
	if artifactID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	text, err := s.ports.Chunks.ArtifactText(ctx, artifactID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting artifact: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     text,
		}},
	}, nil
}

// extractID extracts the trailing ID from a URI like cliniq://{kind}{id}.
func extractID(uri, kind string) string {
	prefix := uriScheme + kind

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
