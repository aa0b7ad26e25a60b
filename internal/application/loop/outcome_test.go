package loop

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentloop/ralph/internal/domain/model/workitem"
)

func TestExitCodeFor(t *testing.T) {
	blocked := &BlockedError{Items: []*workitem.WorkItem{{ID: "a", Status: workitem.StatusDraft}}}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil is success", nil, ExitSuccess},
		{"abort", abortf("gave up"), ExitAborted},
		{"blocked", blocked, ExitBlocked},
		{"cancelled", context.Canceled, ExitCancelled},
		{"wrapped cancelled", fmt.Errorf("run: %w", context.Canceled), ExitCancelled},
		{"wrapped blocked", fmt.Errorf("run: %w", blocked), ExitBlocked},
		{"plain error", errors.New("disk full"), ExitAborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFor(tt.err))
		})
	}
}

func TestBlockedError_Message(t *testing.T) {
	err := &BlockedError{
		Module: "core",
		Items: []*workitem.WorkItem{
			{ID: "add-auth", Status: workitem.StatusDraft},
			{ID: "fix-cache", Status: workitem.StatusPaused},
		},
	}
	msg := err.Error()
	assert.Contains(t, msg, "module core has no eligible changes")
	assert.Contains(t, msg, "add-auth (draft)")
	assert.Contains(t, msg, "fix-cache (paused)")
}

func TestBlockedError_RepositoryScope(t *testing.T) {
	err := &BlockedError{
		Items: []*workitem.WorkItem{{ID: "add-auth", Status: workitem.StatusDraft}},
	}
	assert.Contains(t, err.Error(), "repository has no eligible changes")
}

func TestAbortError_Message(t *testing.T) {
	err := abortf("harness '%s' exited with code %d", "claude", 2)
	assert.Equal(t, "harness 'claude' exited with code 2", err.Error())
}
