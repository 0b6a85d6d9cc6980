package vauth

import (
	"context"
	"errors"

	"github.com/vendo-labs/vauth/internal/audit"
)

// LoginWithOAuth signs in (or signs up) a user the host's OAuth callback
// has already authenticated against the provider. First login creates the
// user and the provider binding atomically; later logins resolve through
// the binding. An address already registered under a different provider
// is rejected rather than silently merged.
func (e *Engine) LoginWithOAuth(ctx context.Context, profile OAuthProfile) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if profile.Provider == ProviderEmail {
		return nil, errors.New("oauth login requires a non-password provider")
	}

	email := normalizeEmail(profile.Email)

	account, err := e.users.GetAccountByProvider(ctx, profile.Provider, profile.ProviderAccountID)
	switch {
	case err == nil:
		user, err := e.users.GetByID(ctx, account.UserID)
		if err != nil {
			return nil, err
		}
		return e.finishOAuthLogin(ctx, user, profile)

	case errors.Is(err, ErrUserNotFound):
		// No binding yet. A user row under this email means the address
		// belongs to another provider (or a password account).
		if _, lookupErr := e.users.GetByEmail(ctx, email); lookupErr == nil {
			e.emit(ctx, audit.Event{Type: audit.TypeOAuthLogin, Email: email,
				Error: auditError(ErrWrongProvider)})
			return nil, ErrWrongProvider
		} else if !errors.Is(lookupErr, ErrUserNotFound) {
			return nil, lookupErr
		}

		user, err := e.users.Create(ctx, CreateUserInput{
			Email:             email,
			FirstName:         profile.FirstName,
			LastName:          profile.LastName,
			PictureURL:        profile.PictureURL,
			Role:              RoleUser,
			IsEmailVerified:   profile.EmailVerified,
			Provider:          profile.Provider,
			ProviderAccountID: profile.ProviderAccountID,
		})
		if err != nil {
			// A racing first login for the same identity may have won.
			if errors.Is(err, ErrDuplicateEmail) {
				return nil, ErrWrongProvider
			}
			return nil, err
		}
		return e.finishOAuthLogin(ctx, user, profile)

	default:
		return nil, err
	}
}

func (e *Engine) finishOAuthLogin(ctx context.Context, user *User, profile OAuthProfile) (*LoginResult, error) {
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	prefs, err := e.users.GetPreferences(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if prefs.TwoFactorEnabled {
		e.metricInc(MetricLoginMFARequired)
		e.emit(ctx, audit.Event{Type: audit.TypeLoginMFARequired, UserID: user.ID,
			IP: profile.IP, Success: true})
		return &LoginResult{MFARequired: true}, nil
	}

	result, err := e.issueSession(ctx, user, profile.UserAgent, profile.IP)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricOAuthLogin)
	e.emit(ctx, audit.Event{Type: audit.TypeOAuthLogin, UserID: user.ID, IP: profile.IP,
		Success: true, Metadata: map[string]string{"provider": string(profile.Provider)}})
	return result, nil
}
