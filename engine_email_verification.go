package vauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/vendo-labs/vauth/internal/audit"
	"github.com/vendo-labs/vauth/mailer"
	"github.com/vendo-labs/vauth/token"
)

// sendVerification mints a fresh verification token (superseding any
// previous one) and mails it, subject to the per-user mail throttle.
func (e *Engine) sendVerification(ctx context.Context, user *User) error {
	allowed, err := e.tokens.AllowSend(ctx, user.ID,
		e.config.Verification.MaxEmailsPerWin, e.config.Verification.EmailWindow)
	if err != nil {
		return err
	}
	if !allowed {
		e.metricInc(MetricRateLimited)
		return ErrRateLimited
	}

	tok, err := e.tokens.Issue(ctx, token.PurposeEmailVerification, user.ID,
		e.config.Verification.EmailTokenTTL)
	if err != nil {
		return err
	}

	if err := e.mail.SendVerification(ctx, user.Email, user.FirstName, tok,
		fmtTTL(e.config.Verification.EmailTokenTTL)); err != nil {
		if errors.Is(err, mailer.ErrDelivery) {
			return fmt.Errorf("%w: %v", ErrEmailDelivery, err)
		}
		return err
	}

	e.metricInc(MetricVerificationSent)
	e.emit(ctx, audit.Event{Type: audit.TypeVerificationSent, UserID: user.ID, Success: true})
	return nil
}

// VerifyEmail consumes a verification token and marks the address
// verified. Consuming is atomic: of two racing calls with the same token,
// exactly one succeeds, the other sees ErrTokenInvalidOrExpired.
func (e *Engine) VerifyEmail(ctx context.Context, tok string) (*SanitizedUser, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	userID, err := e.tokens.Consume(ctx, token.PurposeEmailVerification, tok)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return nil, ErrTokenInvalidOrExpired
		}
		return nil, err
	}

	verified := true
	user, err := e.users.Update(ctx, userID, UserPatch{IsEmailVerified: &verified})
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricEmailVerified)
	e.emit(ctx, audit.Event{Type: audit.TypeEmailVerified, UserID: userID, Success: true})
	return user.Sanitize(), nil
}

// ResendVerification re-issues the verification mail. Unlike the
// best-effort send at registration, the user is actively waiting here, so
// a delivery failure is surfaced as ErrEmailDelivery.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if user.IsEmailVerified {
		return ErrEmailAlreadyVerified
	}
	if !user.IsActive {
		return ErrAccountDeactivated
	}

	if err := e.sendVerification(ctx, user); err != nil {
		return err
	}
	return nil
}
