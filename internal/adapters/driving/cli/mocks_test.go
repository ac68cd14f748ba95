package cli

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driving"
	"github.com/custodia-labs/cliniq/internal/core/services"
)

// mockSettingsService keeps settings in a map.
type mockSettingsService struct {
	values      map[string]string
	validateErr error
	embedErr    error
	llmErr      error
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{values: map[string]string{
		"embedding.provider": "ollama",
		"embedding.model":    "nomic-embed-text",
		"embedding.api_key":  "",
		"embedding.base_url": "",
		"llm.provider":       "openai",
		"llm.model":          "gpt-4o-mini",
		"llm.api_key":        "sk-test-1234567890",
		"llm.base_url":       "",
		"retrieval.chunk_k":  "20",
	}}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := domain.DefaultAppSettings()
	return &s, nil
}

func (m *mockSettingsService) Value(key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", fmt.Errorf("%w: unknown key %q", domain.ErrInvalidInput, key)
	}
	return v, nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if _, ok := m.values[key]; !ok {
		return fmt.Errorf("%w: unknown key %q", domain.ErrInvalidInput, key)
	}
	m.values[key] = value
	return nil
}

func (m *mockSettingsService) Unset(key string) error {
	if _, ok := m.values[key]; !ok {
		return fmt.Errorf("%w: unknown key %q", domain.ErrInvalidInput, key)
	}
	m.values[key] = ""
	return nil
}

func (m *mockSettingsService) Keys() []string {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *mockSettingsService) Validate() error                 { return m.validateErr }
func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }
func (m *mockSettingsService) ChunkerConfig() map[string]any   { return map[string]any{} }
func (m *mockSettingsService) ValidateEmbeddingConfig() error  { return m.embedErr }
func (m *mockSettingsService) ValidateLLMConfig() error        { return m.llmErr }

// mockIngestService records ingested artifacts.
type mockIngestService struct {
	mu        sync.Mutex
	artifacts []domain.Artifact
	removed   []string
	err       error
}

func (m *mockIngestService) Ingest(_ context.Context, a *domain.Artifact) (*driving.IngestReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.artifacts = append(m.artifacts, *a)
	return &driving.IngestReport{
		ArtifactID: a.ID,
		Chunks:     2,
		Indexed:    2,
		Store:      domain.StoreResult{StoredCount: 2, Errors: []domain.StoreError{}},
	}, nil
}

func (m *mockIngestService) ingestedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.artifacts))
	for i := range m.artifacts {
		ids[i] = m.artifacts[i].ID
	}
	return ids
}

func (m *mockIngestService) Remove(_ context.Context, artifactID string) (int, error) {
	m.removed = append(m.removed, "artifact:"+artifactID)
	return 3, m.err
}

func (m *mockIngestService) RemovePatient(_ context.Context, patientID string) (int, error) {
	m.removed = append(m.removed, "patient:"+patientID)
	return 7, m.err
}

func (m *mockIngestService) Rehydrate(_ context.Context) (int, error) { return 0, m.err }

func (m *mockIngestService) Expire(_ context.Context, before time.Time) (int, error) {
	m.removed = append(m.removed, "before:"+before.UTC().Format(time.RFC3339))
	return 1, m.err
}

// mockRetrievalService returns a fixed result.
type mockRetrievalService struct {
	result *domain.RetrievalResult
	err    error

	query     string
	filter    domain.ChunkFilter
	chunkK    int
	sentenceK int
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context, _ []float32, filter domain.ChunkFilter, chunkK, sentenceK int,
) (*domain.RetrievalResult, error) {
	m.filter, m.chunkK, m.sentenceK = filter, chunkK, sentenceK
	return m.result, m.err
}

func (m *mockRetrievalService) RetrieveText(
	_ context.Context, query string, filter domain.ChunkFilter, chunkK, sentenceK int,
) (*domain.RetrievalResult, error) {
	m.query = query
	m.filter, m.chunkK, m.sentenceK = filter, chunkK, sentenceK
	return m.result, m.err
}

// mockAnswerService returns a fixed answer.
type mockAnswerService struct {
	answer *domain.Answer
	err    error

	question string
	filter   domain.ChunkFilter
}

func (m *mockAnswerService) Ask(_ context.Context, question string, filter domain.ChunkFilter) (*domain.Answer, error) {
	m.question, m.filter = question, filter
	if m.answer == nil {
		return nil, m.err
	}
	a := *m.answer
	return &a, m.err
}

// mockChunkService serves chunks from a map.
type mockChunkService struct {
	chunks  map[string]domain.Chunk
	details *driving.ChunkDetails
	stats   domain.StoreStatistics
	err     error

	listFilter domain.ChunkFilter
	deleted    []string
	gcBefore   time.Time
}

func (m *mockChunkService) List(_ context.Context, filter domain.ChunkFilter) ([]domain.Chunk, error) {
	m.listFilter = filter
	out := make([]domain.Chunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, m.err
}

func (m *mockChunkService) Get(_ context.Context, id string) (*domain.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.chunks[id]
	if !ok {
		return nil, fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

func (m *mockChunkService) GetDetails(ctx context.Context, id string) (*driving.ChunkDetails, error) {
	if m.details != nil && m.details.Chunk.ID == id {
		return m.details, nil
	}
	c, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &driving.ChunkDetails{Chunk: *c, SiblingCount: 1}, nil
}

func (m *mockChunkService) ArtifactText(_ context.Context, _ string) (string, error) {
	return "", domain.ErrNotFound
}

func (m *mockChunkService) Delete(_ context.Context, id string) error {
	if _, ok := m.chunks[id]; !ok {
		return fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockChunkService) GarbageCollect(_ context.Context, before time.Time) (int, error) {
	m.gcBefore = before
	return 4, m.err
}

func (m *mockChunkService) Stats(_ context.Context) (domain.StoreStatistics, error) {
	return m.stats, m.err
}

// mockScheduler serves fixed task state.
type mockScheduler struct {
	tasks   []domain.ScheduledTask
	history []domain.TaskResult
	result  *domain.TaskResult
	err     error

	ran          []string
	historyLimit int
}

func (m *mockScheduler) Start(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error { return nil }

func (m *mockScheduler) Tasks(_ context.Context) ([]domain.ScheduledTask, error) {
	return m.tasks, m.err
}

func (m *mockScheduler) History(_ context.Context, _ string, limit int) ([]domain.TaskResult, error) {
	m.historyLimit = limit
	return m.history, m.err
}

func (m *mockScheduler) RunNow(_ context.Context, taskID string) (*domain.TaskResult, error) {
	m.ran = append(m.ran, taskID)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

const noteText = "Patient prescribed Metformin 500mg twice daily for Type 2 Diabetes. Labs pending."

func noteChunk() domain.Chunk {
	return domain.Chunk{
		ID:           "chunk-1",
		ArtifactID:   "note-1",
		PatientID:    "p1",
		ArtifactType: "progress_note",
		Text:         noteText,
		Offsets:      domain.Offsets{Start: 0, End: len(noteText)},
		OccurredAt:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Source:       "test",
	}
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	settings  *mockSettingsService
	ingest    *mockIngestService
	retrieval *mockRetrievalService
	answer    *mockAnswerService
	chunks    *mockChunkService
	scheduler *mockScheduler
}

// setupTestServices installs mocks for every service and restores the
// previous values when the test ends.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()

	ts := &testServices{
		settings:  newMockSettingsService(),
		ingest:    &mockIngestService{},
		retrieval: &mockRetrievalService{result: &domain.RetrievalResult{}},
		answer:    &mockAnswerService{},
		chunks:    &mockChunkService{chunks: map[string]domain.Chunk{"chunk-1": noteChunk()}},
		scheduler: &mockScheduler{},
	}

	prevSettings, prevIngest, prevRetrieval := settingsService, ingestService, retrievalService
	prevAnswer, prevChunks, prevValidator := answerService, chunkService, citationValidator
	prevScheduler := scheduler
	t.Cleanup(func() {
		settingsService, ingestService, retrievalService = prevSettings, prevIngest, prevRetrieval
		answerService, chunkService, citationValidator = prevAnswer, prevChunks, prevValidator
		scheduler = prevScheduler
	})

	settingsService = ts.settings
	ingestService = ts.ingest
	retrievalService = ts.retrieval
	answerService = ts.answer
	chunkService = ts.chunks
	citationValidator = services.NewCitationValidator()
	scheduler = ts.scheduler
	return ts
}

// execute runs the root command with args and returns everything it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		resetFlags(rootCmd)
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default; cobra keeps parsed values
// between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
