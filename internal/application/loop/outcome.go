package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agentloop/ralph/internal/domain/model/workitem"
)

// Process exit codes reported by ralph. Blocked is distinct from
// aborted so callers can tell "work remains but nothing is eligible"
// apart from a genuine failure.
const (
	ExitSuccess   = 0
	ExitAborted   = 1
	ExitBlocked   = 2
	ExitCancelled = 130
)

// AbortError terminates a run: spawn failure, retry-cap exhaustion,
// error-threshold exhaustion, or invalid options.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string {
	return e.Reason
}

// abortf builds an AbortError from a format string.
func abortf(format string, args ...interface{}) *AbortError {
	return &AbortError{Reason: fmt.Sprintf(format, args...)}
}

// BlockedError reports that no eligible work remains in scope while
// non-complete items are still present. Module is empty for
// repository-wide scope.
type BlockedError struct {
	Module string
	Items  []*workitem.WorkItem
}

func (e *BlockedError) Error() string {
	var entries []string
	for _, item := range e.Items {
		entries = append(entries, fmt.Sprintf("%s (%s)", item.ID, item.Status))
	}
	scope := "repository"
	if e.Module != "" {
		scope = "module " + e.Module
	}
	return fmt.Sprintf("%s has no eligible changes; remaining non-complete changes: %s",
		scope, strings.Join(entries, ", "))
}

// ExitCodeFor maps a run outcome to the ralph process exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, context.Canceled) {
		return ExitCancelled
	}
	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return ExitBlocked
	}
	return ExitAborted
}
