package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agentloop/ralph/internal/domain/model/task"
	"github.com/agentloop/ralph/internal/domain/repository"
)

// TaskRepositoryImpl implements repository.TaskRepository with SQLite
type TaskRepositoryImpl struct {
	db *sql.DB
}

// NewTaskRepository creates a new SQLite-based task repository
func NewTaskRepository(db *sql.DB) repository.TaskRepository {
	return &TaskRepositoryImpl{db: db}
}

// Add persists a new task
func (r *TaskRepositoryImpl) Add(ctx context.Context, t *task.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validate task: %w", err)
	}

	query := `
		INSERT INTO tasks (change_id, task_id, name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ChangeID,
		t.ID,
		t.Name,
		t.Status.String(),
		t.CreatedAt.UTC().Format(time.RFC3339),
		t.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("task already exists: %s (change %s)", t.ID, t.ChangeID)
		}
		return fmt.Errorf("insert task: %w", err)
	}

	return nil
}

// ListByChange retrieves all tasks for a change ordered by task ID
func (r *TaskRepositoryImpl) ListByChange(ctx context.Context, changeID string) ([]*task.Task, error) {
	query := `
		SELECT change_id, task_id, name, status, created_at, updated_at
		FROM tasks
		WHERE change_id = ?
		ORDER BY task_id
	`
	return r.queryTasks(ctx, query, changeID)
}

// ListIncomplete retrieves tasks that are neither complete nor shelved,
// ordered by task ID
func (r *TaskRepositoryImpl) ListIncomplete(ctx context.Context, changeID string) ([]*task.Task, error) {
	query := `
		SELECT change_id, task_id, name, status, created_at, updated_at
		FROM tasks
		WHERE change_id = ? AND status NOT IN (?, ?)
		ORDER BY task_id
	`
	return r.queryTasks(ctx, query, changeID,
		task.StatusComplete.String(), task.StatusShelved.String())
}

// Summarize returns task counts for a change
func (r *TaskRepositoryImpl) Summarize(ctx context.Context, changeID string) (task.Summary, error) {
	query := `
		SELECT status, COUNT(*)
		FROM tasks
		WHERE change_id = ?
		GROUP BY status
	`
	rows, err := r.db.QueryContext(ctx, query, changeID)
	if err != nil {
		return task.Summary{}, fmt.Errorf("query task summary: %w", err)
	}
	defer rows.Close()

	var summary task.Summary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return task.Summary{}, fmt.Errorf("scan task summary: %w", err)
		}

		summary.Total += count
		switch task.Status(status) {
		case task.StatusComplete:
			summary.Complete += count
		case task.StatusShelved:
			summary.Shelved += count
		case task.StatusInProgress:
			summary.InProgress += count
		case task.StatusPending:
			summary.Pending += count
		default:
			return task.Summary{}, fmt.Errorf("task summary for %s: unknown status %q", changeID, status)
		}
	}
	if err := rows.Err(); err != nil {
		return task.Summary{}, fmt.Errorf("iterate task summary: %w", err)
	}

	return summary, nil
}

// UpdateStatus sets the status of one task
func (r *TaskRepositoryImpl) UpdateStatus(ctx context.Context, changeID, taskID string, status task.Status) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid status: %s", status)
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE tasks SET status = ?, updated_at = ? WHERE change_id = ? AND task_id = ?",
		status.String(),
		time.Now().UTC().Format(time.RFC3339),
		changeID,
		taskID,
	)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task not found: %s (change %s)", taskID, changeID)
	}

	return nil
}

// queryTasks runs a query returning task rows
func (r *TaskRepositoryImpl) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*task.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTaskFromRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, nil
}

// scanTaskFromRows scans a single task from rows
func scanTaskFromRows(rows *sql.Rows) (*task.Task, error) {
	var (
		changeID  string
		taskID    string
		name      string
		status    string
		createdAt string
		updatedAt string
	)

	if err := rows.Scan(&changeID, &taskID, &name, &status, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scan task failed: %w", err)
	}

	parsedStatus, err := task.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", taskID, err)
	}

	createdAtTime, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at failed: %w", err)
	}
	updatedAtTime, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at failed: %w", err)
	}

	return &task.Task{
		ID:        taskID,
		ChangeID:  changeID,
		Name:      name,
		Status:    parsedStatus,
		CreatedAt: createdAtTime,
		UpdatedAt: updatedAtTime,
	}, nil
}
