// Package session persists server-side session records in Redis. Each
// session lives under its own key with a TTL matching its expiry, and a
// per-user sorted set (scored by creation time) indexes every session a
// user holds so they can be listed and revoked in bulk.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when the session id resolves to nothing.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned when the record exists but is past expiry.
	// The record is deleted as a side effect.
	ErrExpired = errors.New("session expired")
	// ErrUnavailable wraps Redis transport failures.
	ErrUnavailable = errors.New("session store unavailable")
)

// touchExpirationScript rewrites expiresAt inside the stored JSON and
// re-arms the key TTL in one atomic step, so a concurrent revoke can never
// resurrect a deleted session.
const touchExpirationScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
local sess = cjson.decode(data)
sess["expiresAt"] = tonumber(ARGV[1])
redis.call("SET", KEYS[1], cjson.encode(sess), "PX", tonumber(ARGV[2]))
return 1
`

// deleteOwnedScript deletes a session only when it belongs to the given
// user. The ownership check and the delete are one atomic step.
const deleteOwnedScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
local sess = cjson.decode(data)
if sess["userId"] ~= ARGV[1] then
  return -1
end
redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[2])
return 1
`

var (
	touchExpirationLua = redis.NewScript(touchExpirationScript)
	deleteOwnedLua     = redis.NewScript(deleteOwnedScript)
)

// Store is the Redis-backed session store.
type Store struct {
	redis    redis.UniversalClient
	prefix   string
	lifetime time.Duration
}

// NewStore creates a Store. prefix namespaces the Redis keys; lifetime is
// the full session duration granted at creation and on extension.
func NewStore(rdb redis.UniversalClient, prefix string, lifetime time.Duration) *Store {
	return &Store{redis: rdb, prefix: prefix, lifetime: lifetime}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":sess:" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":user:" + userID
}

// Create persists a new session for the user and returns it. The session id
// is a fresh UUID; expiry is now + lifetime.
func (s *Store) Create(ctx context.Context, userID, userAgent string) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		UserAgent: userAgent,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(s.lifetime).Unix(),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.ID), data, s.lifetime)
		pipe.ZAdd(ctx, s.userKey(userID), redis.Z{Score: float64(sess.CreatedAt), Member: sess.ID})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return sess, nil
}

// Get retrieves a session by id. An expired record is deleted and reported
// as ErrExpired; a missing one as ErrNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sess := &Session{}
	if err := json.Unmarshal(data, sess); err != nil {
		return nil, fmt.Errorf("%w: corrupt session %s", ErrUnavailable, sessionID)
	}

	if sess.Expired(time.Now()) {
		// Redis TTL normally reaps this first; expiresAt is authoritative.
		if _, err := s.Delete(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}

	return sess, nil
}

// GetAllByUser returns the user's live sessions, most recently created
// first. Stale index entries left behind by TTL reaping are pruned.
func (s *Store) GetAllByUser(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.redis.ZRevRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(ids) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	now := time.Now()
	sessions := make([]*Session, 0, len(ids))
	var stale []interface{}
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				stale = append(stale, ids[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, cmdErr)
		}
		sess := &Session{}
		if err := json.Unmarshal(data, sess); err != nil {
			stale = append(stale, ids[i])
			continue
		}
		if sess.Expired(now) {
			stale = append(stale, ids[i])
			continue
		}
		sessions = append(sessions, sess)
	}

	if len(stale) > 0 {
		if err := s.redis.ZRem(ctx, s.userKey(userID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return sessions, nil
}

// Extend pushes the session's expiry to now + lifetime. Returns ErrNotFound
// if the session no longer exists.
func (s *Store) Extend(ctx context.Context, sessionID string) (*Session, error) {
	newExpiry := time.Now().Add(s.lifetime)
	res, err := touchExpirationLua.Run(ctx, s.redis,
		[]string{s.key(sessionID)},
		newExpiry.Unix(),
		s.lifetime.Milliseconds(),
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, sessionID)
}

// Delete removes a session unconditionally. The returned bool reports
// whether the session existed.
func (s *Store) Delete(ctx context.Context, sessionID string) (bool, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sess := &Session{}
	if err := json.Unmarshal(data, sess); err != nil {
		// Corrupt record: still remove the key itself.
		if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return true, nil
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionID))
		pipe.ZRem(ctx, s.userKey(sess.UserID), sessionID)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return true, nil
}

// DeleteOwned removes a session only if it belongs to userID. It returns
// ErrNotFound both for a missing session and for one owned by someone else,
// so callers cannot probe other users' session ids.
func (s *Store) DeleteOwned(ctx context.Context, sessionID, userID string) error {
	res, err := deleteOwnedLua.Run(ctx, s.redis,
		[]string{s.key(sessionID), s.userKey(userID)},
		userID,
		sessionID,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res != 1 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllByUser revokes every session the user holds and returns how many
// were removed.
func (s *Store) DeleteAllByUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.redis.ZRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}
	keys = append(keys, s.userKey(userID))

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return len(ids), nil
}

// Ping reports Redis availability.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
