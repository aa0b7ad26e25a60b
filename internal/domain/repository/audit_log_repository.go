package repository

import "context"

// AuditEvent is a single append-only record of loop or status activity.
type AuditEvent struct {
	EventID    string `json:"eventId"`              // ULID assigned by the sink
	RunID      string `json:"runId,omitempty"`      // UUID of the loop invocation; empty for direct CLI edits
	Timestamp  string `json:"timestamp"`            // UTC RFC3339Nano
	Kind       string `json:"kind"`                 // Event kind
	ChangeID   string `json:"changeId,omitempty"`   // Targeted change
	TaskID     string `json:"taskId,omitempty"`     // Targeted task for task events
	Iteration  int    `json:"iteration,omitempty"`  // Loop iteration number
	From       string `json:"from,omitempty"`       // Previous status for status events
	To         string `json:"to,omitempty"`         // New status for status events
	ExitCode   *int   `json:"exitCode,omitempty"`   // Harness exit code
	DurationMs int64  `json:"durationMs,omitempty"` // Iteration duration in milliseconds
	Detail     string `json:"detail,omitempty"`     // Free-form context
}

// Audit event kinds
const (
	EventLoopStarted        = "loop_started"
	EventIterationCompleted = "iteration_completed"
	EventPromiseAccepted    = "promise_accepted"
	EventPromiseRejected    = "promise_rejected"
	EventLoopAborted        = "loop_aborted"
	EventStatusChanged      = "status_changed"
	EventTaskStatusChanged  = "task_status_changed"
)

// AuditSink appends events to the audit trail.
// Emission is best-effort for callers: a failed Emit must never block,
// delay, or abort a loop iteration.
type AuditSink interface {
	Emit(ctx context.Context, event *AuditEvent) error
}
