package vauth

import (
	"context"
	"errors"

	"github.com/vendo-labs/vauth/session"
)

// SessionInfo is the caller-facing view of one live session.
type SessionInfo struct {
	ID        string `json:"id"`
	UserAgent string `json:"userAgent,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// VerifyAccess validates an access token and checks its session is still
// alive, so revocation takes effect immediately instead of at access-token
// expiry. Every failure mode collapses into ErrUnauthorized.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (AuthContext, error) {
	if e == nil {
		return AuthContext{}, ErrEngineNotReady
	}

	claims, err := e.jwt.ParseAccess(accessToken)
	if err != nil {
		return AuthContext{}, ErrUnauthorized
	}

	if _, err := e.sessions.Get(ctx, claims.SessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrExpired) {
			return AuthContext{}, ErrUnauthorized
		}
		return AuthContext{}, err
	}

	return AuthContext{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		Role:      Role(claims.Role),
	}, nil
}

// Sessions lists the user's live sessions, most recently created first.
func (e *Engine) Sessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	sessions, err := e.sessions.GetAllByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionInfo{
			ID:        s.ID,
			UserAgent: s.UserAgent,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
		})
	}
	return out, nil
}
