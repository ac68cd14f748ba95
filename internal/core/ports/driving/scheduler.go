package driving

import (
	"context"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

// Scheduler runs maintenance tasks such as artifact retention while a
// long-lived process like the MCP server is up.
type Scheduler interface {
	// Start begins running scheduled tasks.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the loop and waits for running tasks.
	Stop() error

	// Tasks returns the persisted state of every task.
	Tasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// History returns the most recent results of a task, newest first.
	History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)

	// RunNow runs a registered task immediately and waits for it.
	RunNow(ctx context.Context, taskID string) (*domain.TaskResult, error)
}
