package vauth

import (
	"context"

	"github.com/vendo-labs/vauth/internal/audit"
)

// User returns the sanitized account record.
func (e *Engine) User(ctx context.Context, userID string) (*SanitizedUser, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Sanitize(), nil
}

// UpdateProfile applies a partial profile update and returns the result.
// Credential and status fields in the patch are ignored; those move only
// through their dedicated flows.
func (e *Engine) UpdateProfile(ctx context.Context, userID string, patch UserPatch) (*SanitizedUser, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	patch.PasswordHash = nil
	patch.IsActive = nil
	patch.IsEmailVerified = nil
	patch.Role = nil

	user, err := e.users.Update(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	return user.Sanitize(), nil
}

// DeactivateAccount turns the account off and revokes every session.
// The record and its credentials survive for reactivation.
func (e *Engine) DeactivateAccount(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	inactive := false
	if _, err := e.users.Update(ctx, userID, UserPatch{IsActive: &inactive}); err != nil {
		return err
	}
	if _, err := e.sessions.DeleteAllByUser(ctx, userID); err != nil {
		return err
	}

	e.metricInc(MetricAccountDeactivated)
	e.emit(ctx, audit.Event{Type: audit.TypeAccountDeactivate, UserID: userID, Success: true})
	return nil
}

// ReactivateAccount turns a deactivated account back on. The user still
// has to log in again.
func (e *Engine) ReactivateAccount(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	active := true
	if _, err := e.users.Update(ctx, userID, UserPatch{IsActive: &active}); err != nil {
		return err
	}

	e.emit(ctx, audit.Event{Type: audit.TypeAccountReactivate, UserID: userID, Success: true})
	return nil
}

// DeleteAccount permanently removes the user, their provider bindings and
// preferences, and revokes every session. This is the only hard delete in
// the engine.
func (e *Engine) DeleteAccount(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if _, err := e.sessions.DeleteAllByUser(ctx, userID); err != nil {
		return err
	}
	if err := e.users.Delete(ctx, userID); err != nil {
		return err
	}

	e.metricInc(MetricAccountDeleted)
	e.emit(ctx, audit.Event{Type: audit.TypeAccountDeleted, UserID: userID, Success: true})
	return nil
}
