// Package token issues and consumes single-use verification tokens (email
// verification, password reset). A user holds at most one live token per
// purpose: issuing a new one atomically deletes its predecessor, and
// consuming is an atomic read-and-delete so a token can never be spent
// twice. The package also tracks recent issuances per user to throttle
// outbound verification mail.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Purpose discriminates the token namespaces. Tokens of one purpose are
// never accepted by flows of another.
type Purpose string

const (
	// PurposeEmailVerification marks tokens minted at registration and resend.
	PurposeEmailVerification Purpose = "email"
	// PurposePasswordReset marks tokens minted by forgot-password.
	PurposePasswordReset Purpose = "reset"
)

var (
	// ErrNotFound covers missing, expired, and already-consumed tokens.
	// Callers cannot tell the cases apart.
	ErrNotFound = errors.New("token not found")
	// ErrUnavailable wraps Redis transport failures.
	ErrUnavailable = errors.New("token store unavailable")
)

// issueScript supersedes the user's previous token (if any) and installs
// the new one in a single atomic step, keeping the token key and the
// per-user index consistent.
//
// KEYS[1] user index, KEYS[2] new token key, ARGV[1] token prefix,
// ARGV[2] token, ARGV[3] user id, ARGV[4] TTL millis.
const issueScript = `
local old = redis.call("GET", KEYS[1])
if old then
  redis.call("DEL", ARGV[1] .. old)
end
redis.call("SET", KEYS[2], ARGV[3], "PX", tonumber(ARGV[4]))
redis.call("SET", KEYS[1], ARGV[2], "PX", tonumber(ARGV[4]))
return 1
`

// consumeScript reads and deletes the token atomically. The second of two
// racing consumers sees nothing.
//
// KEYS[1] token key, ARGV[1] user index prefix, ARGV[2] token.
const consumeScript = `
local userId = redis.call("GET", KEYS[1])
if not userId then
  return false
end
redis.call("DEL", KEYS[1])
local indexKey = ARGV[1] .. userId
if redis.call("GET", indexKey) == ARGV[2] then
  redis.call("DEL", indexKey)
end
return userId
`

// throttleScript trims the issuance log to the window, then admits or
// rejects the new send. Count-and-record is one atomic step.
//
// KEYS[1] issuance log, ARGV[1] now millis, ARGV[2] window millis,
// ARGV[3] max sends per window.
const throttleScript = `
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local count = redis.call("ZCARD", KEYS[1])
if count >= tonumber(ARGV[3]) then
  return 0
end
redis.call("ZADD", KEYS[1], now, tostring(now) .. "-" .. tostring(count))
redis.call("PEXPIRE", KEYS[1], window)
return 1
`

var (
	issueLua    = redis.NewScript(issueScript)
	consumeLua  = redis.NewScript(consumeScript)
	throttleLua = redis.NewScript(throttleScript)
)

// Store is the Redis-backed verification token store.
type Store struct {
	redis       redis.UniversalClient
	prefix      string
	tokenLength int
}

// NewStore creates a Store. prefix namespaces the Redis keys; tokenLength
// is the length of generated opaque tokens.
func NewStore(rdb redis.UniversalClient, prefix string, tokenLength int) *Store {
	return &Store{redis: rdb, prefix: prefix, tokenLength: tokenLength}
}

func (s *Store) tokenPrefix(p Purpose) string {
	return s.prefix + ":tok:" + string(p) + ":"
}

func (s *Store) tokenKey(p Purpose, token string) string {
	return s.tokenPrefix(p) + token
}

func (s *Store) indexPrefix(p Purpose) string {
	return s.prefix + ":user:" + string(p) + ":"
}

func (s *Store) indexKey(p Purpose, userID string) string {
	return s.indexPrefix(p) + userID
}

func (s *Store) sendLogKey(userID string) string {
	return s.prefix + ":sent:" + userID
}

// NewOpaque returns a random URL-safe token of the configured length,
// built from UUID hex.
func (s *Store) NewOpaque() string {
	var b strings.Builder
	for b.Len() < s.tokenLength {
		b.WriteString(strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	return b.String()[:s.tokenLength]
}

// Issue mints a fresh token for the user, replacing any live token of the
// same purpose, and returns the token string.
func (s *Store) Issue(ctx context.Context, p Purpose, userID string, ttl time.Duration) (string, error) {
	token := s.NewOpaque()
	err := issueLua.Run(ctx, s.redis,
		[]string{s.indexKey(p, userID), s.tokenKey(p, token)},
		s.tokenPrefix(p),
		token,
		userID,
		ttl.Milliseconds(),
	).Err()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return token, nil
}

// Find returns the user id a token belongs to without consuming it.
func (s *Store) Find(ctx context.Context, p Purpose, token string) (string, error) {
	userID, err := s.redis.Get(ctx, s.tokenKey(p, token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return userID, nil
}

// Consume atomically spends a token and returns the user id it belonged
// to. A second consume of the same token returns ErrNotFound.
func (s *Store) Consume(ctx context.Context, p Purpose, token string) (string, error) {
	res, err := consumeLua.Run(ctx, s.redis,
		[]string{s.tokenKey(p, token)},
		s.indexPrefix(p),
		token,
	).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	userID, ok := res.(string)
	if !ok || userID == "" {
		return "", ErrNotFound
	}
	return userID, nil
}

// AllowSend records one outbound verification mail for the user and
// reports whether it is within the per-window quota. A rejected send is
// not recorded.
func (s *Store) AllowSend(ctx context.Context, userID string, max int, window time.Duration) (bool, error) {
	res, err := throttleLua.Run(ctx, s.redis,
		[]string{s.sendLogKey(userID)},
		time.Now().UnixMilli(),
		window.Milliseconds(),
		max,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res == 1, nil
}
