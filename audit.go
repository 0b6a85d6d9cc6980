package vauth

import (
	"context"
	"time"

	"github.com/vendo-labs/vauth/internal/audit"
)

// AuditEvent re-exports the audit event model for custom sinks.
type AuditEvent = audit.Event

// AuditSink re-exports the sink contract for WithAuditSink.
type AuditSink = audit.Sink

func (e *Engine) emit(ctx context.Context, event audit.Event) {
	if e == nil {
		return
	}
	event.Timestamp = time.Now()
	e.audit.Emit(ctx, event)
}

func auditError(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
