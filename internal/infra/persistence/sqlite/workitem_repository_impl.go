package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/agentloop/ralph/internal/domain/model/workitem"
	"github.com/agentloop/ralph/internal/domain/repository"
)

// WorkItemRepositoryImpl implements repository.WorkItemRepository with SQLite
type WorkItemRepositoryImpl struct {
	db *sql.DB
}

// NewWorkItemRepository creates a new SQLite-based work item repository
func NewWorkItemRepository(db *sql.DB) repository.WorkItemRepository {
	return &WorkItemRepositoryImpl{db: db}
}

// Register persists a new work item
func (r *WorkItemRepositoryImpl) Register(ctx context.Context, item *workitem.WorkItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("validate work item: %w", err)
	}

	query := `
		INSERT INTO work_items (id, name, module, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.Name,
		item.Module,
		item.Status.String(),
		item.CreatedAt.UTC().Format(time.RFC3339),
		item.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("change already registered: %s", item.ID)
		}
		return fmt.Errorf("insert work item: %w", err)
	}

	return nil
}

// Find retrieves a work item by change ID.
// Returns nil without error when the change is unknown.
func (r *WorkItemRepositoryImpl) Find(ctx context.Context, changeID string) (*workitem.WorkItem, error) {
	query := `
		SELECT id, name, module, status, created_at, updated_at
		FROM work_items
		WHERE id = ?
	`
	item, err := scanWorkItem(r.db.QueryRowContext(ctx, query, changeID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// List retrieves every work item within the scope ordered by change ID
func (r *WorkItemRepositoryImpl) List(ctx context.Context, scope repository.Scope) ([]*workitem.WorkItem, error) {
	query := `
		SELECT id, name, module, status, created_at, updated_at
		FROM work_items
	`
	args := []interface{}{}
	if scope.Module != "" {
		query += " WHERE module = ?"
		args = append(args, scope.Module)
	}
	query += " ORDER BY id"

	return r.queryWorkItems(ctx, query, args...)
}

// ListEligible retrieves Ready and InProgress items within the scope
// ordered by change ID
func (r *WorkItemRepositoryImpl) ListEligible(ctx context.Context, scope repository.Scope) ([]*workitem.WorkItem, error) {
	query := `
		SELECT id, name, module, status, created_at, updated_at
		FROM work_items
		WHERE status IN (?, ?)
	`
	args := []interface{}{
		workitem.StatusReady.String(),
		workitem.StatusInProgress.String(),
	}
	if scope.Module != "" {
		query += " AND module = ?"
		args = append(args, scope.Module)
	}
	query += " ORDER BY id"

	return r.queryWorkItems(ctx, query, args...)
}

// GetStatus retrieves the work status of one change
func (r *WorkItemRepositoryImpl) GetStatus(ctx context.Context, changeID string) (workitem.Status, error) {
	var status string
	err := r.db.QueryRowContext(ctx,
		"SELECT status FROM work_items WHERE id = ?", changeID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("change not found: %s", changeID)
	}
	if err != nil {
		return "", fmt.Errorf("query work status: %w", err)
	}

	return workitem.ParseStatus(status)
}

// UpdateStatus sets the work status of one change
func (r *WorkItemRepositoryImpl) UpdateStatus(ctx context.Context, changeID string, status workitem.Status) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid status: %s", status)
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE work_items SET status = ?, updated_at = ? WHERE id = ?",
		status.String(),
		time.Now().UTC().Format(time.RFC3339),
		changeID,
	)
	if err != nil {
		return fmt.Errorf("update work status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("change not found: %s", changeID)
	}

	return nil
}

// queryWorkItems runs a query returning work item rows
func (r *WorkItemRepositoryImpl) queryWorkItems(ctx context.Context, query string, args ...interface{}) ([]*workitem.WorkItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query work items: %w", err)
	}
	defer rows.Close()

	var items []*workitem.WorkItem
	for rows.Next() {
		item, err := scanWorkItemFromRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate work items: %w", err)
	}

	return items, nil
}

// scanWorkItem scans a single work item from a row
func scanWorkItem(row *sql.Row) (*workitem.WorkItem, error) {
	var (
		id        string
		name      string
		module    string
		status    string
		createdAt string
		updatedAt string
	)

	if err := row.Scan(&id, &name, &module, &status, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan work item failed: %w", err)
	}

	return reconstructWorkItem(id, name, module, status, createdAt, updatedAt)
}

// scanWorkItemFromRows scans a single work item from rows
func scanWorkItemFromRows(rows *sql.Rows) (*workitem.WorkItem, error) {
	var (
		id        string
		name      string
		module    string
		status    string
		createdAt string
		updatedAt string
	)

	if err := rows.Scan(&id, &name, &module, &status, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scan work item failed: %w", err)
	}

	return reconstructWorkItem(id, name, module, status, createdAt, updatedAt)
}

// reconstructWorkItem rebuilds a work item from database values
func reconstructWorkItem(id, name, module, status, createdAt, updatedAt string) (*workitem.WorkItem, error) {
	parsedStatus, err := workitem.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("work item %s: %w", id, err)
	}

	createdAtTime, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at failed: %w", err)
	}
	updatedAtTime, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at failed: %w", err)
	}

	return &workitem.WorkItem{
		ID:        id,
		Name:      name,
		Module:    module,
		Status:    parsedStatus,
		CreatedAt: createdAtTime,
		UpdatedAt: updatedAtTime,
	}, nil
}

// parseTime parses a time string in RFC3339 format
func parseTime(timeStr string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, timeStr)
	if err != nil {
		// Try SQLite datetime format
		t, err = time.Parse("2006-01-02 15:04:05", timeStr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse time failed: %w", err)
		}
	}
	return t, nil
}

// isUniqueConstraintError reports whether err is a UNIQUE constraint violation
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
