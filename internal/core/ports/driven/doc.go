// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - ChunkStore: Authoritative in-memory chunk registry with secondary indexes
//   - VectorIndex: Chunk-level similarity search for retrieval pass 1
//   - SentenceSegmenter: Chunk to sentence splitting for retrieval pass 2
//   - SentenceEmbeddingCache: Sentence vectors keyed by sentence ID
//   - EmbeddingService: Generates vector embeddings
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - ArtifactStore: Artifact persistence. Without it, artifacts live only
//     for the lifetime of the process.
//   - LLMService: Language model completion. Without it, answer generation
//     is disabled and only retrieval and validation are available.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or postprocessor package
package driven
