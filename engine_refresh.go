package vauth

import (
	"context"
	"errors"
	"time"

	"github.com/vendo-labs/vauth/internal/audit"
	"github.com/vendo-labs/vauth/session"
)

// Refresh exchanges a refresh token for a fresh access token. The refresh
// token itself is only rotated when the backing session is close to
// expiry: below the rotation threshold the session is extended and a new
// refresh token minted; above it the caller keeps the token it sent.
// Missing and expired sessions fail with distinct errors so clients can
// tell revocation from idle timeout.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwt.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}

	sess, err := e.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		switch {
		case errors.Is(err, session.ErrNotFound):
			return nil, ErrSessionNotFound
		case errors.Is(err, session.ErrExpired):
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	user, err := e.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Orphaned session: the account is gone, so is the session.
			_, _ = e.sessions.Delete(ctx, sess.ID)
			e.metricInc(MetricRefreshFailure)
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrAccountDeactivated
	}

	result := &RefreshResult{RefreshToken: refreshToken}

	if sess.Remaining(time.Now()) < e.config.Session.RotationThreshold {
		if _, err := e.sessions.Extend(ctx, sess.ID); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return nil, ErrSessionNotFound
			}
			return nil, err
		}
		rotated, err := e.jwt.SignRefresh(sess.ID)
		if err != nil {
			return nil, err
		}
		result.RefreshToken = rotated
		result.Rotated = true
		e.metricInc(MetricRefreshRotated)
	}

	access, err := e.jwt.SignAccess(user.ID, sess.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	result.AccessToken = access

	e.metricInc(MetricRefreshSuccess)
	e.emit(ctx, audit.Event{Type: audit.TypeRefresh, UserID: user.ID, SessionID: sess.ID, Success: true})
	return result, nil
}
