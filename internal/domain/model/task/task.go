package task

import (
	"errors"
	"fmt"
	"time"
)

// Task represents one unit of work inside a change.
// Task IDs follow the "{group}.{seq}" convention (e.g. "1.2") but the
// loop treats them as opaque strings.
type Task struct {
	ID        string
	ChangeID  string
	Name      string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Status represents the task status
type Status string

const (
	StatusPending    Status = "pending"     // Not started
	StatusInProgress Status = "in-progress" // Started but unfinished
	StatusComplete   Status = "complete"    // Finished
	StatusShelved    Status = "shelved"     // Explicitly set aside
)

// NewTask creates a new pending task
func NewTask(changeID, id, name string) (*Task, error) {
	if changeID == "" {
		return nil, errors.New("change id is required")
	}
	if id == "" {
		return nil, errors.New("task id is required")
	}
	now := time.Now()
	return &Task{
		ID:        id,
		ChangeID:  changeID,
		Name:      name,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Validate validates the task
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("task id is required")
	}
	if t.ChangeID == "" {
		return errors.New("change id is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	return nil
}

// UpdateStatus updates the task status
func (t *Task) UpdateStatus(newStatus Status) error {
	if !newStatus.IsValid() {
		return fmt.Errorf("invalid status: %s", newStatus)
	}
	t.Status = newStatus
	t.UpdatedAt = time.Now()
	return nil
}

// IsResolved checks if the task needs no further work
func (t *Task) IsResolved() bool {
	return t.Status.IsResolved()
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusComplete, StatusShelved:
		return true
	default:
		return false
	}
}

// IsResolved returns true when the status counts toward completion.
// Complete and shelved tasks both satisfy the completion gate.
func (s Status) IsResolved() bool {
	return s == StatusComplete || s == StatusShelved
}

// ParseStatus converts a string to a Status
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown task status: %q", s)
	}
	return status, nil
}

// Summary aggregates task counts for one change.
type Summary struct {
	Total      int
	Complete   int
	Shelved    int
	InProgress int
	Pending    int
}

// Remaining returns the count of tasks still needing work
func (s Summary) Remaining() int {
	return s.Total - s.Complete - s.Shelved
}

// AllResolved checks if every task is complete or shelved
func (s Summary) AllResolved() bool {
	return s.Remaining() == 0
}
