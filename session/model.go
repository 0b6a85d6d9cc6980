package session

import "time"

// Session is one authenticated device/browser instance. It is independently
// revocable and carries a sliding expiration: refresh calls near the end of
// life push ExpiresAt forward.
type Session struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	UserAgent string `json:"userAgent,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.Unix()
}

// Remaining returns the remaining lifetime at the given time, never negative.
func (s *Session) Remaining(now time.Time) time.Duration {
	d := time.Unix(s.ExpiresAt, 0).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
