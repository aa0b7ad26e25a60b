package workitem

import (
	"errors"
	"fmt"
	"time"
)

// WorkItem represents one registered change and its lifecycle status.
// The loop controller only observes work items to decide eligibility;
// status updates arrive through the CLI or the harness-driven commands.
type WorkItem struct {
	ID        string
	Name      string
	Module    string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Status represents the work status of a change
type Status string

const (
	StatusDraft      Status = "draft"       // Registered but not ready to run
	StatusReady      Status = "ready"       // Eligible for selection
	StatusInProgress Status = "in-progress" // Picked up by a loop
	StatusPaused     Status = "paused"      // Deliberately parked
	StatusComplete   Status = "complete"    // All work finished
)

// NewWorkItem creates a new work item in Draft status
func NewWorkItem(id, name, module string) (*WorkItem, error) {
	if id == "" {
		return nil, errors.New("change id is required")
	}
	now := time.Now()
	return &WorkItem{
		ID:        id,
		Name:      name,
		Module:    module,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Validate validates the work item
func (w *WorkItem) Validate() error {
	if w.ID == "" {
		return errors.New("change id is required")
	}
	if !w.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", w.Status)
	}
	return nil
}

// UpdateStatus updates the work status
func (w *WorkItem) UpdateStatus(newStatus Status) error {
	if !newStatus.IsValid() {
		return fmt.Errorf("invalid status: %s", newStatus)
	}
	w.Status = newStatus
	w.UpdatedAt = time.Now()
	return nil
}

// IsEligible checks if the work item can be auto-selected by a loop
func (w *WorkItem) IsEligible() bool {
	return w.Status.IsEligible()
}

// IsComplete checks if all work on the item is finished
func (w *WorkItem) IsComplete() bool {
	return w.Status == StatusComplete
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusReady, StatusInProgress, StatusPaused, StatusComplete:
		return true
	default:
		return false
	}
}

// IsEligible returns true for statuses a loop may auto-select.
// Draft, Paused and Complete items are never picked up.
func (s Status) IsEligible() bool {
	return s == StatusReady || s == StatusInProgress
}

// ParseStatus converts a string to a Status
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown work status: %q", s)
	}
	return status, nil
}
