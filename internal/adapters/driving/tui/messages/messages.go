// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driving"
)

// RetrievalCompleted carries a two-pass retrieval result back to the model.
type RetrievalCompleted struct {
	Query  string
	Result *domain.RetrievalResult
	Err    error
}

// ChunkRequested asks for a chunk to be opened. SentenceID, when set,
// marks the sentence to highlight.
type ChunkRequested struct {
	ChunkID    string
	SentenceID string
}

// ChunkDetailsLoaded carries a chunk with its sentences and neighbours.
type ChunkDetailsLoaded struct {
	ChunkID    string
	SentenceID string
	Details    *driving.ChunkDetails
	Err        error
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewSearch is the query input and ranked sentence view.
	ViewSearch ViewType = iota
	// ViewChunkDetail shows one chunk with its sentences.
	ViewChunkDetail
	// ViewHelp is the keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewSearch:
		return "search"
	case ViewChunkDetail:
		return "chunk_detail"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
