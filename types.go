package vauth

import (
	"context"
	"time"

	"github.com/vendo-labs/vauth/mailer"
)

// Role is the coarse authorization level carried inside access tokens.
// Fine-grained permission checks belong to the host application.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Provider identifies how an account authenticates.
type Provider string

const (
	ProviderEmail    Provider = "EMAIL"
	ProviderGoogle   Provider = "GOOGLE"
	ProviderFacebook Provider = "FACEBOOK"
)

// User is the full account record held by the credential store.
// PasswordHash is empty for OAuth-only accounts and is stripped from every
// engine response via Sanitize.
type User struct {
	ID              string
	Email           string
	PasswordHash    string
	FirstName       string
	LastName        string
	PictureURL      string
	Role            Role
	IsActive        bool
	IsEmailVerified bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SanitizedUser is the caller-facing projection of a User. It never carries
// the password hash.
type SanitizedUser struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	PictureURL      string    `json:"pictureUrl,omitempty"`
	Role            Role      `json:"role"`
	IsActive        bool      `json:"isActive"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Sanitize strips credential material from a user record.
func (u *User) Sanitize() *SanitizedUser {
	if u == nil {
		return nil
	}
	return &SanitizedUser{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		PictureURL:      u.PictureURL,
		Role:            u.Role,
		IsActive:        u.IsActive,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
	}
}

// Account binds a (provider, providerAccountID) pair to a user. A user may
// hold several accounts but at most one per provider, and a given pair maps
// to exactly one user.
type Account struct {
	ID                string
	UserID            string
	Provider          Provider
	ProviderAccountID string
	CreatedAt         time.Time
}

// Preferences is the 1:1 per-user settings record. TwoFactorSecret is a
// base32 TOTP secret, cleared whenever MFA is revoked.
type Preferences struct {
	UserID           string
	TwoFactorEnabled bool
	TwoFactorSecret  string
}

// UserPatch is a partial update to a user record. Nil fields are untouched.
type UserPatch struct {
	PasswordHash    *string
	FirstName       *string
	LastName        *string
	PictureURL      *string
	Role            *Role
	IsActive        *bool
	IsEmailVerified *bool
}

// PreferencesPatch is a partial update to a preferences record. Nil fields
// are untouched; a non-nil empty TwoFactorSecret clears the stored secret.
type PreferencesPatch struct {
	TwoFactorEnabled *bool
	TwoFactorSecret  *string
}

// CreateUserInput describes an atomic user + account + preferences insert.
// The store must fail with ErrDuplicateEmail when the (lowercased) email is
// taken, using a uniqueness constraint or equivalent conditional write —
// never a separate existence check.
type CreateUserInput struct {
	Email             string
	PasswordHash      string
	FirstName         string
	LastName          string
	PictureURL        string
	Role              Role
	IsEmailVerified   bool
	Provider          Provider
	ProviderAccountID string
}

// UserStore is the credential store contract. Implementations must
// lowercase emails before storing and querying, return ErrUserNotFound for
// missing rows, and keep Create atomic.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, input CreateUserInput) (*User, error)
	Update(ctx context.Context, id string, patch UserPatch) (*User, error)
	Delete(ctx context.Context, id string) error

	GetAccountByProvider(ctx context.Context, provider Provider, providerAccountID string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)

	GetPreferences(ctx context.Context, userID string) (*Preferences, error)
	UpdatePreferences(ctx context.Context, userID string, patch PreferencesPatch) (*Preferences, error)
}

// Mail and Mailer alias the mailer package's message and gateway types so
// hosts only wiring an Engine never import mailer directly.
type (
	Mail   = mailer.Mail
	Mailer = mailer.Gateway
)

// RegisterRequest is the input for Engine.Register.
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// LoginRequest is the input for Engine.Login. IP feeds the per-address
// lockout tracker; UserAgent is recorded on the session.
type LoginRequest struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
}

// LoginResult is returned by Engine.Login, Engine.VerifyMFAForLogin and
// Engine.LoginWithOAuth. Exactly one of the three shapes is populated:
// tokens + user, MFARequired, or EmailVerificationRequired.
type LoginResult struct {
	User                      *SanitizedUser
	AccessToken               string
	RefreshToken              string
	SessionID                 string
	MFARequired               bool
	EmailVerificationRequired bool
}

// RefreshResult carries the outcome of a refresh exchange. RefreshToken is
// the original token when no rotation occurred and a new value when the
// session was extended.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	Rotated      bool
}

// MFASetup is returned by Engine.GenerateMFASecret. QRCode is a
// base64-encoded PNG data URL suitable for direct embedding.
type MFASetup struct {
	Secret string
	URI    string
	QRCode string
}

// OAuthProfile is the provider-asserted identity handed to LoginWithOAuth
// by the host's OAuth callback.
type OAuthProfile struct {
	Provider          Provider
	ProviderAccountID string
	Email             string
	FirstName         string
	LastName          string
	PictureURL        string
	EmailVerified     bool
	IP                string
	UserAgent         string
}
