package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
)

// mockSchedulerStore implements driven.SchedulerStore for testing.
type mockSchedulerStore struct {
	mu      sync.RWMutex
	tasks   map[string]*domain.ScheduledTask
	results map[string][]domain.TaskResult
	saveErr error
	listErr error
	getErr  error
}

var _ driven.SchedulerStore = (*mockSchedulerStore)(nil)

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{
		tasks:   make(map[string]*domain.ScheduledTask),
		results: make(map[string][]domain.TaskResult),
	}
}

func (m *mockSchedulerStore) GetTask(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	task, exists := m.tasks[taskID]
	if !exists {
		return nil, nil
	}
	taskCopy := *task
	return &taskCopy, nil
}

func (m *mockSchedulerStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	tasks := make([]domain.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (m *mockSchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if task == nil {
		return domain.ErrInvalidInput
	}
	taskCopy := *task
	m.tasks[task.ID] = &taskCopy
	return nil
}

func (m *mockSchedulerStore) DeleteTask(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
	return nil
}

func (m *mockSchedulerStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if result == nil {
		return domain.ErrInvalidInput
	}
	m.results[result.TaskID] = append([]domain.TaskResult{*result}, m.results[result.TaskID]...)
	return nil
}

func (m *mockSchedulerStore) GetTaskHistory(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := m.results[taskID]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *mockSchedulerStore) PruneHistory(_ context.Context, _ int) error {
	return nil
}

func (m *mockSchedulerStore) task(id string) *domain.ScheduledTask {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tasks[id]
}

func (m *mockSchedulerStore) resultCount(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results[id])
}

var schedulerNow = time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return schedulerNow }

func TestNewScheduler(t *testing.T) {
	s := NewScheduler(newMockSchedulerStore())

	require.NotNil(t, s)
	assert.Equal(t, time.Minute, s.tick)
	assert.Empty(t, s.tasks)
}

func TestScheduler_StartStop(t *testing.T) {
	store := newMockSchedulerStore()
	s := NewScheduler(store, WithTickInterval(10*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.running
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	assert.NoError(t, NewScheduler(newMockSchedulerStore()).Stop())
}

func TestScheduler_ContextCancel(t *testing.T) {
	s := NewScheduler(newMockSchedulerStore(), WithTickInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_InitialiseTasks(t *testing.T) {
	store := newMockSchedulerStore()
	s := NewScheduler(store, WithClock(fixedClock))
	s.Register(domain.TaskIDRetention, "Retention", domain.TaskConfig{Enabled: true, Interval: time.Hour}, nil)
	s.Register(domain.TaskIDCompact, "Compact", domain.TaskConfig{Interval: 24 * time.Hour}, nil)

	require.NoError(t, s.initialiseTasks(context.Background()))

	retention := store.task(domain.TaskIDRetention)
	require.NotNil(t, retention)
	assert.Equal(t, "Retention", retention.Name)
	assert.True(t, retention.Enabled)
	assert.Equal(t, schedulerNow.Add(time.Hour), retention.NextRun)

	compact := store.task(domain.TaskIDCompact)
	require.NotNil(t, compact)
	assert.False(t, compact.Enabled)
}

func TestScheduler_EnsureTask_UpdateInterval(t *testing.T) {
	store := newMockSchedulerStore()
	lastRun := schedulerNow.Add(-30 * time.Minute)
	require.NoError(t, store.SaveTask(context.Background(), &domain.ScheduledTask{
		ID: domain.TaskIDRetention, Interval: time.Hour, LastRun: lastRun,
		NextRun: lastRun.Add(time.Hour), Enabled: true,
	}))

	s := NewScheduler(store, WithClock(fixedClock))
	s.Register(domain.TaskIDRetention, "Retention", domain.TaskConfig{Enabled: true, Interval: 6 * time.Hour}, nil)
	require.NoError(t, s.ensureTask(context.Background(), domain.TaskIDRetention))

	task := store.task(domain.TaskIDRetention)
	assert.Equal(t, 6*time.Hour, task.Interval)
	assert.Equal(t, schedulerNow.Add(6*time.Hour), task.NextRun)
	assert.Equal(t, lastRun, task.LastRun, "history is kept")
}

func TestScheduler_EnsureTask_StoreError(t *testing.T) {
	store := newMockSchedulerStore()
	store.getErr = errors.New("db down")
	s := NewScheduler(store)
	s.Register("x", "X", domain.TaskConfig{Enabled: true, Interval: time.Hour}, nil)

	assert.Error(t, s.initialiseTasks(context.Background()))
}

func TestScheduler_CheckAndRunDueTasks(t *testing.T) {
	store := newMockSchedulerStore()
	ctx := context.Background()
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID: "due", Interval: time.Hour, NextRun: schedulerNow.Add(-time.Minute), Enabled: true,
	}))
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID: "later", Interval: time.Hour, NextRun: schedulerNow.Add(time.Minute), Enabled: true,
	}))
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID: "orphan", Interval: time.Hour, Enabled: true,
	}))

	var dueRuns, laterRuns atomic.Int32
	s := NewScheduler(store, WithClock(fixedClock))
	s.Register("due", "Due", domain.TaskConfig{Enabled: true, Interval: time.Hour}, func(context.Context) (int, error) {
		dueRuns.Add(1)
		return 3, nil
	})
	s.Register("later", "Later", domain.TaskConfig{Enabled: true, Interval: time.Hour}, func(context.Context) (int, error) {
		laterRuns.Add(1)
		return 0, nil
	})

	s.checkAndRunDueTasks(ctx)
	s.wg.Wait()

	assert.Equal(t, int32(1), dueRuns.Load())
	assert.Equal(t, int32(0), laterRuns.Load())

	task := store.task("due")
	assert.Equal(t, schedulerNow, task.LastRun)
	assert.Equal(t, schedulerNow, task.LastSuccess)
	assert.Equal(t, schedulerNow.Add(time.Hour), task.NextRun)
	assert.Empty(t, task.LastError)

	history, err := s.History(ctx, "due", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.Equal(t, 3, history[0].ItemsProcessed)
}

func TestScheduler_ListError(t *testing.T) {
	store := newMockSchedulerStore()
	store.listErr = errors.New("db down")
	s := NewScheduler(store)

	s.checkAndRunDueTasks(context.Background())
	s.wg.Wait()

	_, err := s.Tasks(context.Background())
	assert.Error(t, err)
}

func TestScheduler_RunNow(t *testing.T) {
	store := newMockSchedulerStore()
	s := NewScheduler(store, WithClock(fixedClock))
	s.Register(domain.TaskIDRetention, "Retention", domain.TaskConfig{Interval: time.Hour},
		func(context.Context) (int, error) { return 0, errors.New("artifact store closed") })

	result, err := s.RunNow(context.Background(), domain.TaskIDRetention)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "artifact store closed", result.Error)

	task := store.task(domain.TaskIDRetention)
	require.NotNil(t, task, "running a task persists it")
	assert.Equal(t, "artifact store closed", task.LastError)
	assert.True(t, task.LastSuccess.IsZero())
	assert.Equal(t, 1, store.resultCount(domain.TaskIDRetention))

	tasks, err := s.Tasks(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestScheduler_RunNow_Unknown(t *testing.T) {
	_, err := NewScheduler(newMockSchedulerStore()).RunNow(context.Background(), "nope")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScheduler_RunNow_AlreadyRunning(t *testing.T) {
	s := NewScheduler(newMockSchedulerStore())
	s.Register("slow", "Slow", domain.TaskConfig{Enabled: true}, func(context.Context) (int, error) { return 0, nil })
	require.True(t, s.claim("slow"))

	_, err := s.RunNow(context.Background(), "slow")

	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestScheduler_Tasks_StoresRegistered(t *testing.T) {
	store := newMockSchedulerStore()
	s := NewScheduler(store, WithClock(fixedClock))
	s.Register(domain.TaskIDCompact, "Compact", domain.TaskConfig{Enabled: true, Interval: time.Hour}, nil)

	tasks, err := s.Tasks(context.Background())

	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskIDCompact, tasks[0].ID)
	assert.Equal(t, schedulerNow.Add(time.Hour), tasks[0].NextRun)
}
