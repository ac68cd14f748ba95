package tui

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("tui: retrieval service is required")

// ErrMissingChunkService is returned when the chunk service is not provided.
var ErrMissingChunkService = errors.New("tui: chunk service is required")

// ErrInvalidPorts is returned when no ports are provided at all.
var ErrInvalidPorts = errors.New("tui: invalid ports configuration")
