package repository

import (
	"context"

	"github.com/agentloop/ralph/internal/domain/model/task"
)

// TaskRepository manages the tasks belonging to each change.
// The completion gate consumes Summarize and ListIncomplete; the CLI
// and harness-driven commands mutate task status.
type TaskRepository interface {
	// Add persists a new task
	Add(ctx context.Context, t *task.Task) error

	// ListByChange retrieves all tasks for a change ordered by task ID
	ListByChange(ctx context.Context, changeID string) ([]*task.Task, error)

	// ListIncomplete retrieves tasks that are neither complete nor shelved,
	// ordered by task ID
	ListIncomplete(ctx context.Context, changeID string) ([]*task.Task, error)

	// Summarize returns task counts for a change
	Summarize(ctx context.Context, changeID string) (task.Summary, error)

	// UpdateStatus sets the status of one task
	UpdateStatus(ctx context.Context, changeID, taskID string, status task.Status) error
}
