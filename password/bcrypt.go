// Package password wraps bcrypt with a configurable cost factor. Hashing is
// the caller's responsibility before anything touches the credential store;
// the store never sees plaintext.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is adequate for production hardware as of 2026.
	DefaultCost = 12

	minCost = 10
)

// Hasher hashes and compares passwords with a fixed cost.
type Hasher struct {
	cost int
}

// NewHasher validates the cost and returns a Hasher.
func NewHasher(cost int) (*Hasher, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < minCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	return &Hasher{cost: cost}, nil
}

// Hash returns the bcrypt hash of plain.
func (h *Hasher) Hash(plain string) (string, error) {
	// bcrypt silently truncates beyond 72 bytes; reject instead.
	if len(plain) > 72 {
		return "", errors.New("password longer than 72 bytes")
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Compare reports whether plain matches hash. A malformed hash is reported
// as an error, a clean mismatch as (false, nil).
func (h *Hasher) Compare(plain, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
