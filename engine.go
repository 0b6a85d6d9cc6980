package vauth

import (
	"context"

	"go.uber.org/zap"

	"github.com/vendo-labs/vauth/attempt"
	"github.com/vendo-labs/vauth/internal/audit"
	"github.com/vendo-labs/vauth/jwt"
	"github.com/vendo-labs/vauth/mailer"
	"github.com/vendo-labs/vauth/mfa"
	"github.com/vendo-labs/vauth/password"
	"github.com/vendo-labs/vauth/session"
	"github.com/vendo-labs/vauth/token"
)

// Engine is the authentication core. It owns every credential-bearing
// decision: registration, the login state machine, token refresh, session
// revocation, email verification, password reset, MFA and OAuth linking.
// Construct one with New().…Build(), share it, and Close it on shutdown.
type Engine struct {
	config   Config
	users    UserStore
	sessions *session.Store
	tokens   *token.Store
	attempts *attempt.Tracker
	jwt      *jwt.Manager
	hasher   *password.Hasher
	mfa      *mfa.Provisioner
	mail     *mailer.Sender
	audit    *audit.Dispatcher
	metrics  *Metrics
	logger   *zap.Logger
}

// Close flushes the audit dispatcher. The Engine must not be used after.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports audit events shed under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Ping verifies the session backend is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.sessions.Ping(ctx)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}
