package vauth

import (
	"errors"
	"time"
)

// Config carries every tunable of the engine. Zero values are filled in by
// DefaultConfig; Build validates the result before constructing anything.
type Config struct {
	JWT          JWTConfig
	Session      SessionConfig
	Lockout      LockoutConfig
	Verification VerificationConfig
	Password     PasswordConfig
	MFA          MFAConfig
	Mail         MailConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
	Security     SecurityConfig
}

// JWTConfig configures the access/refresh token signer. The two token kinds
// carry independent secrets so a leaked refresh secret cannot mint access
// tokens and vice versa.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
}

// SessionConfig configures server-side session records.
// RotationThreshold is the remaining-life floor below which a refresh call
// extends the session and rotates the refresh token.
type SessionConfig struct {
	RedisPrefix       string
	Lifetime          time.Duration
	RotationThreshold time.Duration
}

// LockoutConfig configures the per-IP failed-login tracker.
type LockoutConfig struct {
	RedisPrefix   string
	MaxAttempts   int
	BlockDuration time.Duration
}

// VerificationConfig configures single-use verification tokens and the
// outbound-email throttle shared by resend-verification and forgot-password.
type VerificationConfig struct {
	RedisPrefix     string
	TokenLength     int
	EmailTokenTTL   time.Duration
	ResetTokenTTL   time.Duration
	MaxEmailsPerWin int
	EmailWindow     time.Duration
}

// PasswordConfig configures the bcrypt hasher.
type PasswordConfig struct {
	Cost int
}

// MFAConfig configures TOTP provisioning.
type MFAConfig struct {
	Issuer string
	QRSize int
}

// MailConfig carries the identity and link targets used by mail templates.
type MailConfig struct {
	AppName     string
	FromAddress string
	ClientURL   string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// SecurityConfig carries boundary-level policy consumed by httpapi.
type SecurityConfig struct {
	ProductionMode bool
}

// DefaultConfig returns the production defaults described in the package
// documentation. Secrets are intentionally empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
			Issuer:     "vauth",
			Audience:   "user",
		},
		Session: SessionConfig{
			RedisPrefix:       "vs",
			Lifetime:          30 * 24 * time.Hour,
			RotationThreshold: 24 * time.Hour,
		},
		Lockout: LockoutConfig{
			RedisPrefix:   "va",
			MaxAttempts:   5,
			BlockDuration: 15 * time.Minute,
		},
		Verification: VerificationConfig{
			RedisPrefix:     "vt",
			TokenLength:     25,
			EmailTokenTTL:   45 * time.Minute,
			ResetTokenTTL:   time.Hour,
			MaxEmailsPerWin: 2,
			EmailWindow:     3 * time.Minute,
		},
		Password: PasswordConfig{Cost: 12},
		MFA: MFAConfig{
			Issuer: "Vendo",
			QRSize: 200,
		},
		Mail: MailConfig{
			AppName:     "Vendo",
			FromAddress: "onboarding@vendo.app",
			ClientURL:   "http://localhost:3000",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Validate rejects configurations that would silently weaken the engine.
func (c Config) Validate() error {
	if len(c.JWT.AccessSecret) < 32 {
		return errors.New("jwt access secret must be at least 32 bytes")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		return errors.New("jwt refresh secret must be at least 32 bytes")
	}
	if string(c.JWT.AccessSecret) == string(c.JWT.RefreshSecret) {
		return errors.New("access and refresh secrets must differ")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.AccessTTL > time.Hour {
		return errors.New("access TTL must be positive and at most an hour")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("refresh TTL must not be shorter than access TTL")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("session lifetime must be positive")
	}
	if c.Session.RotationThreshold <= 0 || c.Session.RotationThreshold >= c.Session.Lifetime {
		return errors.New("rotation threshold must be positive and below session lifetime")
	}
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("lockout max attempts must be at least 1")
	}
	if c.Lockout.BlockDuration < time.Minute || c.Lockout.BlockDuration > time.Hour {
		return errors.New("lockout block duration must be between 1m and 1h")
	}
	if c.Verification.TokenLength < 16 {
		return errors.New("verification token length must be at least 16")
	}
	if c.Verification.EmailTokenTTL <= 0 || c.Verification.ResetTokenTTL <= 0 {
		return errors.New("verification token TTLs must be positive")
	}
	if c.Verification.MaxEmailsPerWin < 1 || c.Verification.EmailWindow <= 0 {
		return errors.New("verification email throttle misconfigured")
	}
	if c.Password.Cost < 10 || c.Password.Cost > 31 {
		return errors.New("bcrypt cost must be between 10 and 31")
	}
	if c.MFA.Issuer == "" {
		return errors.New("mfa issuer required")
	}
	return nil
}
