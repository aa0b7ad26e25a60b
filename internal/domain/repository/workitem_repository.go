package repository

import (
	"context"

	"github.com/agentloop/ralph/internal/domain/model/workitem"
)

// Scope restricts which work items a query covers.
// An empty Module means the whole project.
type Scope struct {
	Module string
}

// WorkItemRepository manages registered changes and their work status.
// List results are ordered by change ID so selection is deterministic.
type WorkItemRepository interface {
	// Register persists a new work item
	Register(ctx context.Context, item *workitem.WorkItem) error

	// Find retrieves a work item by change ID
	// Returns nil without error when the change is unknown
	Find(ctx context.Context, changeID string) (*workitem.WorkItem, error)

	// List retrieves every work item within the scope
	List(ctx context.Context, scope Scope) ([]*workitem.WorkItem, error)

	// ListEligible retrieves Ready and InProgress items within the scope
	ListEligible(ctx context.Context, scope Scope) ([]*workitem.WorkItem, error)

	// GetStatus retrieves the work status of one change
	GetStatus(ctx context.Context, changeID string) (workitem.Status, error)

	// UpdateStatus sets the work status of one change
	UpdateStatus(ctx context.Context, changeID string, status workitem.Status) error
}
