package vauth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/vendo-labs/vauth/internal/audit"
)

// Login runs the password login state machine. The checks are strictly
// ordered; each step either terminates the attempt or hands off to the
// next:
//
//	user lookup -> active -> email verified -> provider -> lockout ->
//	password -> MFA -> issue session
//
// An unknown address and a wrong password both come back as
// ErrInvalidCredentials. An unverified address triggers a throttled
// resend of the verification mail and does not count as a failed
// attempt. While the source IP is blocked the password is never
// compared, so a blocked attacker learns nothing even with the right
// password.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(req.Email)

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, e.loginFailed(ctx, email, req.IP, ErrInvalidCredentials)
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, e.loginFailed(ctx, email, req.IP, ErrAccountDeactivated)
	}

	if !user.IsEmailVerified {
		// Not a credential failure: the tracker is untouched and the user
		// gets a fresh verification link, subject to the mail throttle.
		if err := e.sendVerification(ctx, user); err != nil && !errors.Is(err, ErrRateLimited) {
			e.logger.Warn("verification mail not resent at login",
				zap.String("userId", user.ID), zap.Error(err))
		}
		e.emit(ctx, audit.Event{Type: audit.TypeLoginFailure, UserID: user.ID, IP: req.IP,
			Error: auditError(ErrEmailNotVerified)})
		return &LoginResult{EmailVerificationRequired: true}, nil
	}

	account, err := e.users.GetAccountByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if err != nil || account.Provider != ProviderEmail || user.PasswordHash == "" {
		// OAuth-only address: there is no password to compare.
		return nil, e.loginFailed(ctx, email, req.IP, ErrWrongProvider)
	}

	status, err := e.attempts.Check(ctx, req.IP)
	if err != nil {
		return nil, err
	}
	if status.Blocked {
		e.metricInc(MetricLoginBlocked)
		e.emit(ctx, audit.Event{Type: audit.TypeLoginBlocked, UserID: user.ID, IP: req.IP})
		return nil, &BlockedError{RetryAfter: status.RetryAfter}
	}

	match, err := e.hasher.Compare(req.Password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, e.passwordFailed(ctx, user, req.IP)
	}

	prefs, err := e.users.GetPreferences(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if err := e.attempts.Reset(ctx, req.IP); err != nil {
		return nil, err
	}

	if prefs.TwoFactorEnabled {
		e.metricInc(MetricLoginMFARequired)
		e.emit(ctx, audit.Event{Type: audit.TypeLoginMFARequired, UserID: user.ID, IP: req.IP, Success: true})
		return &LoginResult{MFARequired: true}, nil
	}

	return e.issueSession(ctx, user, req.UserAgent, req.IP)
}

// loginFailed records the audit trail for terminal pre-password failures.
func (e *Engine) loginFailed(ctx context.Context, email, ip string, cause error) error {
	e.metricInc(MetricLoginFailure)
	e.emit(ctx, audit.Event{Type: audit.TypeLoginFailure, Email: email, IP: ip, Error: auditError(cause)})
	return cause
}

// passwordFailed advances the lockout tracker and notifies the account
// owner when this failure crossed the threshold.
func (e *Engine) passwordFailed(ctx context.Context, user *User, ip string) error {
	status, err := e.attempts.RecordFailure(ctx, ip)
	if err != nil {
		return err
	}

	e.metricInc(MetricLoginFailure)

	if status.JustBlocked {
		e.metricInc(MetricLoginBlocked)
		e.emit(ctx, audit.Event{Type: audit.TypeLoginBlocked, UserID: user.ID, IP: ip})
		blocked := &BlockedError{RetryAfter: status.RetryAfter}
		if err := e.mail.SendBlockedNotice(ctx, user.Email, user.FirstName, blocked.RemainingMinutes()); err != nil {
			e.logger.Warn("blocked notice not sent", zap.String("userId", user.ID), zap.Error(err))
		}
		return blocked
	}
	if status.Blocked {
		return &BlockedError{RetryAfter: status.RetryAfter}
	}

	e.emit(ctx, audit.Event{Type: audit.TypeLoginFailure, UserID: user.ID, IP: ip,
		Error: auditError(ErrInvalidCredentials)})
	return ErrInvalidCredentials
}

// issueSession is the single exit point of every successful primary or
// second-factor login: one session record, one access token, one refresh
// token.
func (e *Engine) issueSession(ctx context.Context, user *User, userAgent, ip string) (*LoginResult, error) {
	sess, err := e.sessions.Create(ctx, user.ID, userAgent)
	if err != nil {
		return nil, err
	}

	access, err := e.jwt.SignAccess(user.ID, sess.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	refresh, err := e.jwt.SignRefresh(sess.ID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emit(ctx, audit.Event{Type: audit.TypeLoginSuccess, UserID: user.ID,
		SessionID: sess.ID, IP: ip, Success: true})

	return &LoginResult{
		User:         user.Sanitize(),
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sess.ID,
	}, nil
}
