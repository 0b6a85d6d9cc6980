package vauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/vendo-labs/vauth/internal/audit"
	"github.com/vendo-labs/vauth/mailer"
	"github.com/vendo-labs/vauth/token"
)

// ForgotPassword issues a reset token and mails it. The response is
// identical whether or not the address exists, so the endpoint cannot be
// used to enumerate accounts; only the mail throttle and delivery
// failures surface as errors, and those fire solely for real accounts
// the caller already controls the inbox of.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emit(ctx, audit.Event{Type: audit.TypePasswordForgot, Email: normalizeEmail(email),
				Error: auditError(ErrUserNotFound)})
			return nil
		}
		return err
	}
	if !user.IsActive {
		e.emit(ctx, audit.Event{Type: audit.TypePasswordForgot, UserID: user.ID,
			Error: auditError(ErrAccountDeactivated)})
		return nil
	}

	allowed, err := e.tokens.AllowSend(ctx, user.ID,
		e.config.Verification.MaxEmailsPerWin, e.config.Verification.EmailWindow)
	if err != nil {
		return err
	}
	if !allowed {
		e.metricInc(MetricRateLimited)
		return ErrRateLimited
	}

	tok, err := e.tokens.Issue(ctx, token.PurposePasswordReset, user.ID,
		e.config.Verification.ResetTokenTTL)
	if err != nil {
		return err
	}

	if err := e.mail.SendPasswordReset(ctx, user.Email, user.FirstName, tok,
		fmtTTL(e.config.Verification.ResetTokenTTL)); err != nil {
		if errors.Is(err, mailer.ErrDelivery) {
			return fmt.Errorf("%w: %v", ErrEmailDelivery, err)
		}
		return err
	}

	e.metricInc(MetricPasswordForgot)
	e.emit(ctx, audit.Event{Type: audit.TypePasswordForgot, UserID: user.ID, Success: true})
	return nil
}

// ResetPassword redeems a reset token and installs a new password. The
// token survives a same-password rejection (the user can retry), but is
// consumed atomically on the success path, so two racing resets with one
// token have exactly one winner. Success revokes every session the user
// holds.
func (e *Engine) ResetPassword(ctx context.Context, tok, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	userID, err := e.tokens.Find(ctx, token.PurposePasswordReset, tok)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return ErrTokenInvalidOrExpired
		}
		return err
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.PasswordHash != "" {
		same, err := e.hasher.Compare(newPassword, user.PasswordHash)
		if err != nil {
			return err
		}
		if same {
			return ErrSamePassword
		}
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	// Consume after the cheap rejections so the token is only burned by
	// the winning reset.
	if _, err := e.tokens.Consume(ctx, token.PurposePasswordReset, tok); err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return ErrTokenInvalidOrExpired
		}
		return err
	}

	if _, err := e.users.Update(ctx, userID, UserPatch{PasswordHash: &hash}); err != nil {
		return err
	}

	if _, err := e.sessions.DeleteAllByUser(ctx, userID); err != nil {
		return err
	}

	e.metricInc(MetricPasswordReset)
	e.emit(ctx, audit.Event{Type: audit.TypePasswordReset, UserID: userID, Success: true})
	return nil
}
