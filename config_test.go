package vauth

import (
	"testing"
	"time"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte("test-access-secret-test-access-se")
	cfg.JWT.RefreshSecret = []byte("test-refresh-secret-test-refresh-")
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing access secret", func(c *Config) { c.JWT.AccessSecret = nil }},
		{"short refresh secret", func(c *Config) { c.JWT.RefreshSecret = []byte("short") }},
		{"identical secrets", func(c *Config) { c.JWT.RefreshSecret = c.JWT.AccessSecret }},
		{"access TTL above an hour", func(c *Config) { c.JWT.AccessTTL = 2 * time.Hour }},
		{"refresh TTL below access TTL", func(c *Config) { c.JWT.RefreshTTL = time.Minute }},
		{"zero session lifetime", func(c *Config) { c.Session.Lifetime = 0 }},
		{"rotation threshold above lifetime", func(c *Config) { c.Session.RotationThreshold = c.Session.Lifetime * 2 }},
		{"zero lockout attempts", func(c *Config) { c.Lockout.MaxAttempts = 0 }},
		{"block under a minute", func(c *Config) { c.Lockout.BlockDuration = time.Second }},
		{"block over an hour", func(c *Config) { c.Lockout.BlockDuration = 2 * time.Hour }},
		{"tiny token length", func(c *Config) { c.Verification.TokenLength = 8 }},
		{"zero email window", func(c *Config) { c.Verification.EmailWindow = 0 }},
		{"bcrypt cost too low", func(c *Config) { c.Password.Cost = 4 }},
		{"empty mfa issuer", func(c *Config) { c.MFA.Issuer = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("invalid config accepted")
			}
		})
	}
}
