package vauth

import (
	"context"
	"errors"

	"github.com/vendo-labs/vauth/internal/audit"
	"github.com/vendo-labs/vauth/session"
)

// Logout revokes one session. A second call for the same id returns
// ErrSessionNotFound, which the HTTP layer maps to a clean 401 — never a
// 500.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	existed, err := e.sessions.Delete(ctx, sessionID)
	if err != nil {
		return err
	}
	if !existed {
		return ErrSessionNotFound
	}

	e.metricInc(MetricLogout)
	e.emit(ctx, audit.Event{Type: audit.TypeLogout, SessionID: sessionID, Success: true})
	return nil
}

// LogoutAll revokes every session the user holds and returns how many
// were removed.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	n, err := e.sessions.DeleteAllByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	e.metricInc(MetricLogoutAll)
	e.emit(ctx, audit.Event{Type: audit.TypeLogout, UserID: userID, Success: true,
		Metadata: map[string]string{"scope": "all"}})
	return n, nil
}

// RevokeSession deletes one of the user's own sessions. A session id
// belonging to someone else is indistinguishable from a missing one.
func (e *Engine) RevokeSession(ctx context.Context, userID, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.sessions.DeleteOwned(ctx, sessionID, userID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	e.emit(ctx, audit.Event{Type: audit.TypeSessionRevoked, UserID: userID,
		SessionID: sessionID, Success: true})
	return nil
}
