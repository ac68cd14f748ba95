package domain

import "time"

// ScheduledTask represents a recurring maintenance task.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string `json:"id"`

	// Name is a human-readable name for the task.
	Name string `json:"name"`

	// Interval defines how often the task should run.
	Interval time.Duration `json:"interval"`

	// LastRun is when the task last ran.
	LastRun time.Time `json:"last_run"`

	// NextRun is when the task should run next.
	NextRun time.Time `json:"next_run"`

	// LastError contains the last error message, if any.
	LastError string `json:"last_error,omitempty"`

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time `json:"last_success"`

	// Enabled indicates whether the task is active.
	Enabled bool `json:"enabled"`
}

// IsDue reports whether an enabled task should run at now.
func (t *ScheduledTask) IsDue(now time.Time) bool {
	return t.Enabled && !t.NextRun.After(now)
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	// TaskID identifies which task was run.
	TaskID string `json:"task_id"`

	// StartedAt is when the task started.
	StartedAt time.Time `json:"started_at"`

	// EndedAt is when the task completed.
	EndedAt time.Time `json:"ended_at"`

	// Success indicates whether the task completed without error.
	Success bool `json:"success"`

	// Error contains the error message if Success is false.
	Error string `json:"error,omitempty"`

	// ItemsProcessed is a count of items handled (e.g., artifacts expired).
	ItemsProcessed int `json:"items_processed"`
}

// TaskConfig holds configuration for a single task.
type TaskConfig struct {
	// Enabled indicates whether this task should run.
	Enabled bool

	// Interval defines how often the task should run.
	Interval time.Duration
}

// Task IDs for built-in maintenance tasks.
const (
	// TaskIDRetention removes artifacts older than the retention period.
	TaskIDRetention = "retention"

	// TaskIDCompact reclaims space in the artifact database.
	TaskIDCompact = "compact"
)
