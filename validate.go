package vauth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	minPasswordLength = 8
	// bcrypt input limit.
	maxPasswordLength = 72
)

var (
	errEmailRequired    = errors.New("email is required")
	errEmailMalformed   = errors.New("email is malformed")
	errPasswordTooShort = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	errPasswordTooLong  = fmt.Errorf("password must be at most %d bytes", maxPasswordLength)
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return errEmailRequired
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return errEmailMalformed
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return errPasswordTooShort
	}
	if len(password) > maxPasswordLength {
		return errPasswordTooLong
	}
	return nil
}

// fmtTTL renders a duration for mail copy: "45 minutes", "1 hour".
func fmtTTL(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	m := int(d / time.Minute)
	if m <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
