package vauth

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors returned by the engine. Callers branch with errors.Is;
// the httpapi package maps each one to a stable machine code, a localizable
// message key, and an HTTP status.
var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	// The two cases are deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDeactivated is returned when the account exists but isActive is false.
	ErrAccountDeactivated = errors.New("account deactivated")
	// ErrAccountBlocked is returned while a login-attempt block window is active.
	// It is always wrapped in a *BlockedError carrying the remaining time.
	ErrAccountBlocked = errors.New("account temporarily blocked")
	// ErrEmailNotVerified is returned by flows that require a verified address
	// outside of login (login itself reports EmailVerificationRequired instead).
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrEmailAlreadyVerified is returned by resend-verification for a verified account.
	ErrEmailAlreadyVerified = errors.New("email already verified")
	// ErrWrongProvider is returned when the address is bound to a non-password
	// provider, or an OAuth login collides with a different provider's account.
	ErrWrongProvider = errors.New("email registered with a different provider")
	// ErrDuplicateEmail is returned by registration for an already-registered address.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUserNotFound is an internal lookup failure. Login paths translate it
	// to ErrInvalidCredentials before it reaches a caller.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenInvalidOrExpired covers missing, expired, and already-consumed
	// verification tokens. The three cases are indistinguishable by design.
	ErrTokenInvalidOrExpired = errors.New("token invalid or expired")
	// ErrSessionNotFound is returned when a session id resolves to nothing.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when the session row exists but is past expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrRefreshInvalid is returned for a refresh token that fails verification.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrSamePassword rejects a password reset to the current password.
	ErrSamePassword = errors.New("new password must differ from current password")
	// ErrMfaAlreadyEnabled guards MFA setup on an already-protected account.
	ErrMfaAlreadyEnabled = errors.New("mfa already enabled")
	// ErrMfaNotEnabled guards MFA revoke/login-verify when MFA is off.
	ErrMfaNotEnabled = errors.New("mfa not enabled")
	// ErrMfaInvalidCode is returned for a TOTP code that does not verify.
	ErrMfaInvalidCode = errors.New("invalid mfa code")
	// ErrRateLimited is returned when the outbound-email cooldown is exceeded.
	ErrRateLimited = errors.New("too many requests")
	// ErrUnauthorized is returned for a missing or garbled access token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned by role checks.
	ErrForbidden = errors.New("forbidden")
	// ErrEmailDelivery is returned when a mail the user is actively waiting
	// for (resend verification, password reset) cannot be dispatched.
	ErrEmailDelivery = errors.New("email delivery failed")
	// ErrStoreUnavailable wraps backend outages. Mapped to a bare 500.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEngineNotReady is returned when the engine is used before Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// BlockedError wraps ErrAccountBlocked with the remaining block window.
type BlockedError struct {
	RetryAfter time.Duration
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("account temporarily blocked, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *BlockedError) Unwrap() error { return ErrAccountBlocked }

// RemainingMinutes reports the block window rounded up to whole minutes,
// matching the granularity shown to end users.
func (e *BlockedError) RemainingMinutes() int {
	m := int((e.RetryAfter + time.Minute - 1) / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}

type errorMeta struct {
	code       string
	messageKey string
	status     int
}

var errorTable = []struct {
	err  error
	meta errorMeta
}{
	{ErrInvalidCredentials, errorMeta{"AUTH_INVALID_CREDENTIALS", "auth.invalid_credentials", http.StatusUnauthorized}},
	{ErrAccountDeactivated, errorMeta{"ACCOUNT_DEACTIVATED", "user.account_deactivated", http.StatusForbidden}},
	{ErrAccountBlocked, errorMeta{"AUTH_BLOCKED", "auth.temporarily_blocked", http.StatusForbidden}},
	{ErrEmailNotVerified, errorMeta{"EMAIL_NOT_VERIFIED", "auth.email_not_verified", http.StatusForbidden}},
	{ErrEmailAlreadyVerified, errorMeta{"EMAIL_ALREADY_VERIFIED", "auth.email_already_verified", http.StatusBadRequest}},
	{ErrWrongProvider, errorMeta{"AUTH_WRONG_PROVIDER", "auth.wrong_provider", http.StatusBadRequest}},
	{ErrDuplicateEmail, errorMeta{"AUTH_EMAIL_ALREADY_EXISTS", "auth.email_exists", http.StatusBadRequest}},
	{ErrUserNotFound, errorMeta{"USER_NOT_FOUND", "user.not_found", http.StatusNotFound}},
	{ErrTokenInvalidOrExpired, errorMeta{"VERIFICATION_INVALID_OR_EXPIRED", "auth.token_invalid", http.StatusBadRequest}},
	{ErrSessionNotFound, errorMeta{"AUTH_SESSION_NOT_FOUND", "session.not_found", http.StatusUnauthorized}},
	{ErrSessionExpired, errorMeta{"AUTH_SESSION_EXPIRED", "session.expired", http.StatusUnauthorized}},
	{ErrRefreshInvalid, errorMeta{"AUTH_REFRESH_TOKEN_INVALID", "auth.refresh_invalid", http.StatusUnauthorized}},
	{ErrSamePassword, errorMeta{"AUTH_PASSWORD_SAME", "auth.same_password", http.StatusBadRequest}},
	{ErrMfaAlreadyEnabled, errorMeta{"MFA_ALREADY_ENABLED", "mfa.already_enabled", http.StatusBadRequest}},
	{ErrMfaNotEnabled, errorMeta{"MFA_NOT_ENABLED", "mfa.not_enabled", http.StatusBadRequest}},
	{ErrMfaInvalidCode, errorMeta{"MFA_INVALID_CODE", "mfa.invalid_code", http.StatusBadRequest}},
	{ErrRateLimited, errorMeta{"TOO_MANY_REQUESTS", "error.too_many_requests", http.StatusTooManyRequests}},
	{ErrUnauthorized, errorMeta{"UNAUTHORIZED", "error.unauthorized", http.StatusUnauthorized}},
	{ErrForbidden, errorMeta{"FORBIDDEN", "error.forbidden", http.StatusForbidden}},
	{ErrEmailDelivery, errorMeta{"EMAIL_DELIVERY_FAILED", "error.email_delivery", http.StatusInternalServerError}},
}

func metaOf(err error) (errorMeta, bool) {
	for _, entry := range errorTable {
		if errors.Is(err, entry.err) {
			return entry.meta, true
		}
	}
	return errorMeta{}, false
}

// Code returns the stable machine-readable code for a known engine error,
// or "GENERAL_ERROR" for anything else (internal detail is never leaked).
func Code(err error) string {
	if meta, ok := metaOf(err); ok {
		return meta.code
	}
	return "GENERAL_ERROR"
}

// MessageKey returns the localization key for a known engine error.
// The engine never hardcodes user-facing strings; translation happens
// at the HTTP boundary.
func MessageKey(err error) string {
	if meta, ok := metaOf(err); ok {
		return meta.messageKey
	}
	return "error.internal"
}

// HTTPStatus maps a known engine error to its HTTP status. Unknown errors
// map to 500.
func HTTPStatus(err error) int {
	if meta, ok := metaOf(err); ok {
		return meta.status
	}
	return http.StatusInternalServerError
}
