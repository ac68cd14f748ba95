// Package domain defines the core business entities for cliniq.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Artifact: An ingested clinical source document
//   - Chunk: A sentence-aligned, overlapping span of an artifact
//   - Sentence: A citable span of a chunk with dual offsets
//   - Extraction/Provenance: A model-produced claim about a chunk span
//   - ValidationResult and ConfidenceScore: The outcome of checking claims
//
// # Coordinate Systems
//
// Offsets are half-open [start,end) byte ranges. Chunk offsets are
// relative to the artifact text, sentence offsets are relative to the
// chunk text (with an absolute copy relative to the artifact), and
// extraction offsets are relative to the cited chunk text.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
