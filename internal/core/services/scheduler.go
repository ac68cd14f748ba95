package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
	"github.com/custodia-labs/cliniq/internal/core/ports/driving"
	"github.com/custodia-labs/cliniq/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// historyLimit is the number of results kept per task.
const historyLimit = 100

// TaskFunc runs one maintenance task and returns the number of items it
// handled.
type TaskFunc func(ctx context.Context) (int, error)

type registeredTask struct {
	name string
	cfg  domain.TaskConfig
	run  TaskFunc
}

// Scheduler runs registered maintenance tasks at their intervals.
// Task state is persisted so intervals survive restarts.
type Scheduler struct {
	store driven.SchedulerStore
	tick  time.Duration
	now   func() time.Time

	tasks map[string]registeredTask

	mu       sync.Mutex
	running  bool
	inflight map[string]bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often due tasks are checked. Defaults to a minute.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// NewScheduler creates a scheduler with no tasks.
func NewScheduler(store driven.SchedulerStore, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:    store,
		tick:     time.Minute,
		now:      time.Now,
		tasks:    make(map[string]registeredTask),
		inflight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a task. Registering an ID again replaces it.
func (s *Scheduler) Register(id, name string, cfg domain.TaskConfig, run TaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = registeredTask{name: name, cfg: cfg, run: run}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx, stopCh)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	// Wait for running tasks to complete
	s.wg.Wait()

	return nil
}

// Tasks returns the persisted state of every task. Registered tasks that
// have never been stored are stored first.
func (s *Scheduler) Tasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	if err := s.initialiseTasks(ctx); err != nil {
		return nil, err
	}
	return s.store.ListTasks(ctx)
}

// History returns the most recent results of a task, newest first.
func (s *Scheduler) History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.GetTaskHistory(ctx, taskID, limit)
}

// RunNow runs a registered task immediately, whether or not it is due or
// enabled, and waits for it to finish.
func (s *Scheduler) RunNow(ctx context.Context, taskID string) (*domain.TaskResult, error) {
	s.mu.Lock()
	reg, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("task %q: %w", taskID, domain.ErrNotFound)
	}

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		task = s.newTask(taskID, reg)
	}

	if !s.claim(taskID) {
		return nil, fmt.Errorf("task %q is already running: %w", taskID, domain.ErrAlreadyExists)
	}
	defer s.release(taskID)

	return s.execute(ctx, task, reg.run), nil
}

// initialiseTasks ensures all registered tasks exist in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)

	for _, id := range ids {
		if err := s.ensureTask(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) newTask(id string, reg registeredTask) *domain.ScheduledTask {
	return &domain.ScheduledTask{
		ID:       id,
		Name:     reg.name,
		Interval: reg.cfg.Interval,
		Enabled:  reg.cfg.Enabled,
		NextRun:  s.now().Add(reg.cfg.Interval),
	}
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id string) error {
	s.mu.Lock()
	reg := s.tasks[id]
	s.mu.Unlock()

	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = s.newTask(id, reg)
	} else {
		if task.Interval != reg.cfg.Interval {
			task.Interval = reg.cfg.Interval
			// Recalculate next run from now
			task.NextRun = s.now().Add(reg.cfg.Interval)
		}
		task.Name = reg.name
		task.Enabled = reg.cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	// Check for due tasks immediately on startup
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks starts every due task that is not already running.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := tasks[i]
		if !task.IsDue(now) {
			continue
		}

		s.mu.Lock()
		reg, ok := s.tasks[task.ID]
		s.mu.Unlock()
		if !ok {
			logger.Debug("scheduler: no handler for task %s", task.ID)
			continue
		}
		if !s.claim(task.ID) {
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release(task.ID)
			s.execute(ctx, &task, reg.run)
		}()
	}
}

func (s *Scheduler) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[id] {
		return false
	}
	s.inflight[id] = true
	return true
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

// execute runs a task and persists its new state and result.
func (s *Scheduler) execute(ctx context.Context, task *domain.ScheduledTask, run TaskFunc) *domain.TaskResult {
	result := &domain.TaskResult{
		TaskID:    task.ID,
		StartedAt: s.now(),
	}

	items, err := run(ctx)
	result.ItemsProcessed = items
	result.EndedAt = s.now()
	if err != nil {
		result.Error = err.Error()
		task.LastError = err.Error()
		logger.Warn("scheduler: task %s failed: %v", task.ID, err)
	} else {
		result.Success = true
		task.LastError = ""
		task.LastSuccess = result.EndedAt
		logger.Debug("scheduler: task %s handled %d item(s)", task.ID, items)
	}

	task.LastRun = result.StartedAt
	task.NextRun = result.EndedAt.Add(task.Interval)

	if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
		logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
	}
	if recordErr := s.store.RecordResult(ctx, result); recordErr != nil {
		logger.Warn("scheduler: failed to record result for %s: %v", task.ID, recordErr)
	}
	if pruneErr := s.store.PruneHistory(ctx, historyLimit); pruneErr != nil {
		logger.Warn("scheduler: failed to prune history: %v", pruneErr)
	}

	return result
}
