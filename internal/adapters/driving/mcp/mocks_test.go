package mcp

import (
	"context"
	"time"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driving"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	result *domain.RetrievalResult
	err    error

	query  string
	filter domain.ChunkFilter
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context, _ []float32, filter domain.ChunkFilter, _, _ int,
) (*domain.RetrievalResult, error) {
	m.filter = filter
	return m.result, m.err
}

func (m *mockRetrievalService) RetrieveText(
	_ context.Context, query string, filter domain.ChunkFilter, _, _ int,
) (*domain.RetrievalResult, error) {
	m.query = query
	m.filter = filter
	return m.result, m.err
}

// mockChunkService is a mock implementation of driving.ChunkService.
type mockChunkService struct {
	chunks    map[string]domain.Chunk
	artifacts map[string]string
	stats     domain.StoreStatistics
	err       error
}

func (m *mockChunkService) List(_ context.Context, _ domain.ChunkFilter) ([]domain.Chunk, error) {
	out := make([]domain.Chunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		out = append(out, c)
	}
	return out, m.err
}

func (m *mockChunkService) Get(_ context.Context, id string) (*domain.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (m *mockChunkService) GetDetails(ctx context.Context, id string) (*driving.ChunkDetails, error) {
	c, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &driving.ChunkDetails{Chunk: *c, SiblingCount: 1}, nil
}

func (m *mockChunkService) ArtifactText(_ context.Context, id string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	text, ok := m.artifacts[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return text, nil
}

func (m *mockChunkService) Delete(_ context.Context, _ string) error { return m.err }

func (m *mockChunkService) GarbageCollect(_ context.Context, _ time.Time) (int, error) {
	return 0, m.err
}

func (m *mockChunkService) Stats(_ context.Context) (domain.StoreStatistics, error) {
	return m.stats, m.err
}

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer *domain.Answer
	err    error
}

func (m *mockAnswerService) Ask(_ context.Context, _ string, _ domain.ChunkFilter) (*domain.Answer, error) {
	return m.answer, m.err
}
