// Package attempt tracks failed login attempts per source IP and enforces
// a temporary block once the threshold is crossed. A record moves through
// three states: clean (no failures), accumulating (1..max-1 failures) and
// blocked. A block that has run out is cleared on the next touch, and the
// failure that happens to discover the elapsed block starts a fresh count
// rather than inheriting the old one.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps Redis transport failures.
var ErrUnavailable = errors.New("attempt tracker unavailable")

// Status is the tracker's answer for one IP.
type Status struct {
	Blocked    bool
	Count      int
	RetryAfter time.Duration
	// JustBlocked is set on the failure that crossed the threshold, so the
	// caller can emit the blocked notification exactly once.
	JustBlocked bool
}

// checkScript reports the block state and clears an elapsed block.
//
// KEYS[1] record, ARGV[1] now millis.
const checkScript = `
local now = tonumber(ARGV[1])
local until_ms = tonumber(redis.call("HGET", KEYS[1], "blockedUntil") or "0")
if until_ms > now then
  return {1, until_ms - now}
end
if until_ms > 0 then
  redis.call("DEL", KEYS[1])
end
return {0, 0}
`

// failureScript advances the record by one failure. Status codes:
// 0 counted, 1 still blocked (failure ignored), 2 threshold crossed.
// An elapsed block resets the record and the triggering failure is not
// counted.
//
// KEYS[1] record, ARGV[1] now millis, ARGV[2] max attempts,
// ARGV[3] block millis.
const failureScript = `
local now = tonumber(ARGV[1])
local max = tonumber(ARGV[2])
local block = tonumber(ARGV[3])
local until_ms = tonumber(redis.call("HGET", KEYS[1], "blockedUntil") or "0")
if until_ms > now then
  return {1, 0, until_ms - now}
end
if until_ms > 0 then
  redis.call("DEL", KEYS[1])
  return {0, 0, 0}
end
local count = redis.call("HINCRBY", KEYS[1], "count", 1)
redis.call("PEXPIRE", KEYS[1], block)
if count >= max then
  redis.call("HSET", KEYS[1], "blockedUntil", now + block)
  redis.call("PEXPIRE", KEYS[1], block)
  return {2, count, block}
end
return {0, count, 0}
`

var (
	checkLua   = redis.NewScript(checkScript)
	failureLua = redis.NewScript(failureScript)
)

// Tracker is the Redis-backed lockout tracker.
type Tracker struct {
	redis         redis.UniversalClient
	prefix        string
	maxAttempts   int
	blockDuration time.Duration
}

// NewTracker creates a Tracker. An IP is blocked for blockDuration after
// maxAttempts consecutive failures.
func NewTracker(rdb redis.UniversalClient, prefix string, maxAttempts int, blockDuration time.Duration) *Tracker {
	return &Tracker{
		redis:         rdb,
		prefix:        prefix,
		maxAttempts:   maxAttempts,
		blockDuration: blockDuration,
	}
}

func (t *Tracker) key(ip string) string {
	return t.prefix + ":ip:" + ip
}

// Check reports whether the IP is currently blocked. An elapsed block is
// cleared as a side effect.
func (t *Tracker) Check(ctx context.Context, ip string) (Status, error) {
	res, err := checkLua.Run(ctx, t.redis, []string{t.key(ip)}, time.Now().UnixMilli()).Int64Slice()
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) != 2 {
		return Status{}, fmt.Errorf("%w: unexpected script reply", ErrUnavailable)
	}
	return Status{
		Blocked:    res[0] == 1,
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
	}, nil
}

// RecordFailure registers one failed login from the IP and returns the
// resulting state. The failure that crosses the threshold reports
// JustBlocked.
func (t *Tracker) RecordFailure(ctx context.Context, ip string) (Status, error) {
	res, err := failureLua.Run(ctx, t.redis,
		[]string{t.key(ip)},
		time.Now().UnixMilli(),
		t.maxAttempts,
		t.blockDuration.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) != 3 {
		return Status{}, fmt.Errorf("%w: unexpected script reply", ErrUnavailable)
	}
	st := Status{
		Count:      int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}
	switch res[0] {
	case 1:
		st.Blocked = true
	case 2:
		st.Blocked = true
		st.JustBlocked = true
	}
	return st, nil
}

// Reset clears the record after a successful login.
func (t *Tracker) Reset(ctx context.Context, ip string) error {
	if err := t.redis.Del(ctx, t.key(ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
