// Package audit provides the append-only JSONL audit trail.
package audit

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentloop/ralph/internal/domain/repository"
	"github.com/agentloop/ralph/internal/infra/persistence/file"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/afero"
)

// FileAuditSink appends audit events to a JSONL file.
// Event IDs are monotonic ULIDs so the file sorts chronologically.
// Callers treat emission as best-effort; this sink only reports errors,
// it never retries or blocks beyond one append.
type FileAuditSink struct {
	fs   afero.Fs
	path string

	// mu guards entropy (not concurrency-safe) and keeps appends whole
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewFileAuditSink creates a sink writing to the given JSONL path
func NewFileAuditSink(fs afero.Fs, path string) *FileAuditSink {
	return &FileAuditSink{
		fs:      fs,
		path:    path,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Emit appends one event. The event's EventID and Timestamp are
// assigned here when unset.
func (s *FileAuditSink) Emit(ctx context.Context, event *repository.AuditEvent) error {
	if event == nil {
		return fmt.Errorf("nil audit event")
	}

	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if event.EventID == "" {
		event.EventID = ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
	}
	if event.Timestamp == "" {
		event.Timestamp = now.Format(time.RFC3339Nano)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	if err := file.AppendLine(s.fs, s.path, data); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}

	return nil
}
