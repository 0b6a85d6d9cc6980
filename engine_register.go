package vauth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/vendo-labs/vauth/internal/audit"
)

// Register creates a password-provider account and kicks off email
// verification. Duplicate detection is left to the store's uniqueness
// constraint, so two concurrent registrations for one address resolve to
// exactly one winner.
//
// Verification mail delivery is best effort here: the user can always
// request a resend, so a gateway outage must not roll back the account.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*SanitizedUser, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(req.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := e.users.Create(ctx, CreateUserInput{
		Email:             email,
		PasswordHash:      hash,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Role:              RoleUser,
		Provider:          ProviderEmail,
		ProviderAccountID: email,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			e.metricInc(MetricRegisterDuplicate)
		}
		e.emit(ctx, audit.Event{Type: audit.TypeRegister, Email: email, Error: auditError(err)})
		return nil, err
	}

	if err := e.sendVerification(ctx, user); err != nil {
		e.logger.Warn("verification mail not sent after registration",
			zap.String("userId", user.ID), zap.Error(err))
	}

	e.metricInc(MetricRegisterSuccess)
	e.emit(ctx, audit.Event{Type: audit.TypeRegister, UserID: user.ID, Email: email, Success: true})
	return user.Sanitize(), nil
}
