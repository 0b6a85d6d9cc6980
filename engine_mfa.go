package vauth

import (
	"context"
	"errors"

	"github.com/vendo-labs/vauth/internal/audit"
	"github.com/vendo-labs/vauth/mfa"
)

// GenerateMFASecret starts TOTP enrollment. A secret provisioned earlier
// but never confirmed is reused, so re-opening the setup screen keeps the
// QR code the user may already have scanned.
func (e *Engine) GenerateMFASecret(ctx context.Context, userID string) (*MFASetup, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	prefs, err := e.users.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if prefs.TwoFactorEnabled {
		return nil, ErrMfaAlreadyEnabled
	}

	if prefs.TwoFactorSecret != "" {
		provisioned, err := e.mfa.Rebuild(user.Email, prefs.TwoFactorSecret)
		if err == nil {
			return &MFASetup{Secret: provisioned.Secret, URI: provisioned.URI, QRCode: provisioned.QRCode}, nil
		}
		// Unusable stored secret: fall through and mint a fresh one.
	}

	provisioned, err := e.mfa.Generate(user.Email)
	if err != nil {
		return nil, err
	}

	secret := provisioned.Secret
	if _, err := e.users.UpdatePreferences(ctx, userID, PreferencesPatch{TwoFactorSecret: &secret}); err != nil {
		return nil, err
	}

	return &MFASetup{Secret: provisioned.Secret, URI: provisioned.URI, QRCode: provisioned.QRCode}, nil
}

// VerifyMFASetup confirms enrollment with a live code and turns MFA on.
// A wrong code is rejected without touching the lockout tracker; the
// caller is already authenticated here.
func (e *Engine) VerifyMFASetup(ctx context.Context, userID, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	prefs, err := e.users.GetPreferences(ctx, userID)
	if err != nil {
		return err
	}
	if prefs.TwoFactorEnabled {
		return ErrMfaAlreadyEnabled
	}
	if prefs.TwoFactorSecret == "" {
		return ErrMfaNotEnabled
	}

	if !mfa.Validate(code, prefs.TwoFactorSecret) {
		e.metricInc(MetricMFAFailure)
		return ErrMfaInvalidCode
	}

	enabled := true
	if _, err := e.users.UpdatePreferences(ctx, userID, PreferencesPatch{TwoFactorEnabled: &enabled}); err != nil {
		return err
	}

	e.metricInc(MetricMFAEnabled)
	e.emit(ctx, audit.Event{Type: audit.TypeMFAEnabled, UserID: userID, Success: true})
	return nil
}

// RevokeMFA turns MFA off and discards the secret.
func (e *Engine) RevokeMFA(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	prefs, err := e.users.GetPreferences(ctx, userID)
	if err != nil {
		return err
	}
	if !prefs.TwoFactorEnabled {
		return ErrMfaNotEnabled
	}

	disabled := false
	empty := ""
	if _, err := e.users.UpdatePreferences(ctx, userID, PreferencesPatch{
		TwoFactorEnabled: &disabled,
		TwoFactorSecret:  &empty,
	}); err != nil {
		return err
	}

	e.metricInc(MetricMFARevoked)
	e.emit(ctx, audit.Event{Type: audit.TypeMFARevoked, UserID: userID, Success: true})
	return nil
}

// VerifyMFAForLogin completes a login that stopped at the MFA gate. The
// lockout tracker covers this step too: code guessing from a blocked IP
// is refused outright, and failed codes advance the same counter as
// failed passwords.
func (e *Engine) VerifyMFAForLogin(ctx context.Context, email, code, ip, userAgent string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	prefs, err := e.users.GetPreferences(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if !prefs.TwoFactorEnabled {
		return nil, ErrMfaNotEnabled
	}

	status, err := e.attempts.Check(ctx, ip)
	if err != nil {
		return nil, err
	}
	if status.Blocked {
		e.metricInc(MetricLoginBlocked)
		return nil, &BlockedError{RetryAfter: status.RetryAfter}
	}

	if !mfa.Validate(code, prefs.TwoFactorSecret) {
		e.metricInc(MetricMFAFailure)
		status, err := e.attempts.RecordFailure(ctx, ip)
		if err != nil {
			return nil, err
		}
		if status.JustBlocked || status.Blocked {
			e.emit(ctx, audit.Event{Type: audit.TypeLoginBlocked, UserID: user.ID, IP: ip})
			return nil, &BlockedError{RetryAfter: status.RetryAfter}
		}
		e.emit(ctx, audit.Event{Type: audit.TypeLoginFailure, UserID: user.ID, IP: ip,
			Error: auditError(ErrMfaInvalidCode)})
		return nil, ErrMfaInvalidCode
	}

	if err := e.attempts.Reset(ctx, ip); err != nil {
		return nil, err
	}

	return e.issueSession(ctx, user, userAgent, ip)
}
