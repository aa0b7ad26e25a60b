package common

import (
	"context"

	"github.com/agentloop/ralph/internal/app"
	"github.com/agentloop/ralph/internal/domain/repository"
)

// EmitAudit sends one best-effort audit event. Failures are logged and
// swallowed; a broken trail must never fail a CLI edit.
func EmitAudit(ctx context.Context, sink repository.AuditSink, event *repository.AuditEvent) {
	if sink == nil || event == nil {
		return
	}
	if err := sink.Emit(ctx, event); err != nil {
		app.GetLogger().Warn("audit emit failed: %v", err)
	}
}
