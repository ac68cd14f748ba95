package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
)

// keywordAxes maps each vector dimension to a keyword. Texts get a unit
// weight on every axis whose keyword they contain, so similarity follows
// shared vocabulary.
var keywordAxes = []string{"metformin", "lab", "follow", "diabetes", "pressure"}

func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(keywordAxes)+1)
	v[len(keywordAxes)] = 0.05 // keeps unrelated texts away from the zero vector
	for i, kw := range keywordAxes {
		if strings.Contains(lower, kw) {
			v[i] = 1
		}
	}
	return v
}

// mockEmbeddingService implements driven.EmbeddingService for testing.
type mockEmbeddingService struct {
	mu       sync.Mutex
	calls    int
	embedded []string

	// failOn fails any batch containing a text with this substring.
	failOn   string
	embedErr error

	// delay blocks each call until it elapses or ctx is done.
	delay time.Duration
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.embedded = append(m.embedded, texts...)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, &domain.ProviderError{Provider: "mock", Op: "embed", Err: ctx.Err()}
		}
	}
	if m.embedErr != nil {
		return nil, &domain.ProviderError{Provider: "mock", Op: "embed", Err: m.embedErr}
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if m.failOn != "" && strings.Contains(t, m.failOn) {
			return nil, &domain.ProviderError{Provider: "mock", Op: "embed", Err: errors.New("upstream failure")}
		}
		out[i] = keywordVector(t)
	}
	return out, nil
}

func (m *mockEmbeddingService) embeddedTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.embedded...)
}

func (m *mockEmbeddingService) Dimensions() int { return len(keywordAxes) + 1 }
func (m *mockEmbeddingService) ModelName() string { return "mock-embed" }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error { return nil }

// mockLLMService implements driven.LLMService for testing.
type mockLLMService struct {
	response string
	err      error

	prompt string
	opts   driven.GenerateOptions
}

func (m *mockLLMService) Complete(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.prompt = prompt
	m.opts = opts
	return m.response, m.err
}

func (m *mockLLMService) ModelName() string { return "mock-llm" }
func (m *mockLLMService) Ping(_ context.Context) error { return nil }
func (m *mockLLMService) Close() error { return nil }

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	data any
	err  error
}

func (m *mockPromptStore) Load(name string) (string, error) { return name, nil }

func (m *mockPromptStore) Render(name string, data any) (string, error) {
	m.data = data
	if m.err != nil {
		return "", m.err
	}
	return "prompt:" + name, nil
}

func (m *mockPromptStore) Reload() {}

// mockArtifactStore implements driven.ArtifactStore for testing.
type mockArtifactStore struct {
	mu        sync.Mutex
	artifacts map[string]domain.Artifact
	order     []string
	saveErr   error
}

func newMockArtifactStore() *mockArtifactStore {
	return &mockArtifactStore{artifacts: make(map[string]domain.Artifact)}
}

func (m *mockArtifactStore) Save(_ context.Context, a *domain.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.artifacts[a.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.artifacts[a.ID] = *a
	m.order = append(m.order, a.ID)
	return nil
}

func (m *mockArtifactStore) Get(_ context.Context, id string) (*domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.artifacts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (m *mockArtifactStore) List(_ context.Context, patientID string) ([]domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Artifact
	for _, id := range m.order {
		a, ok := m.artifacts[id]
		if ok && (patientID == "" || a.PatientID == patientID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockArtifactStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.artifacts, id)
	return nil
}

func (m *mockArtifactStore) DeleteByPatient(_ context.Context, patientID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, a := range m.artifacts {
		if a.PatientID == patientID {
			delete(m.artifacts, id)
			n++
		}
	}
	return n, nil
}

// mockChunker implements driven.Chunker with a fixed result.
type mockChunker struct {
	chunks []domain.Chunk
	err    error
}

func (m *mockChunker) Name() string { return "mock" }

func (m *mockChunker) Process(_ context.Context, _ *domain.Artifact) ([]domain.Chunk, error) {
	return m.chunks, m.err
}

// mockRetrievalService implements driving.RetrievalService with a fixed result.
type mockRetrievalService struct {
	result *domain.RetrievalResult
	err    error
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context, _ []float32, _ domain.ChunkFilter, _, _ int,
) (*domain.RetrievalResult, error) {
	return m.result, m.err
}

func (m *mockRetrievalService) RetrieveText(
	_ context.Context, _ string, _ domain.ChunkFilter, _, _ int,
) (*domain.RetrievalResult, error) {
	return m.result, m.err
}
