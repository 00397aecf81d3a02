// Package quota provides the Redis-backed quota window store, used when
// reservations for one identity must be shared across processes (a user with
// several open tabs hitting different gateway instances).
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aichat/chat-gateway/internal/core/domain"
)

// reserveScript is the atomic check-then-increment. The INCR result is the
// reservation count for the current window; the first reservation opens the
// window by arming the key's expiry. Over-limit increments are rolled back
// inside the same script, so the stored count never exceeds the limit.
//
// KEYS[1] window key, ARGV[1] window millis, ARGV[2] limit.
// Returns {count, pttl, allowed}.
var reserveScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local pttl = redis.call('PTTL', KEYS[1])
if count > tonumber(ARGV[2]) then
    redis.call('DECR', KEYS[1])
    return {tonumber(ARGV[2]), pttl, 0}
end
return {count, pttl, 1}
`)

// RedisTracker enforces rolling-window quotas in Redis. The window is the
// key's TTL: it opens on the first reservation and resets by expiring, which
// matches the lazy-reset contract — an idle key simply disappears and the
// next reservation opens a fresh window.
type RedisTracker struct {
	client *redis.Client
	policy domain.QuotaPolicy
	now    func() time.Time
}

func NewRedisTracker(client *redis.Client, policy domain.QuotaPolicy) *RedisTracker {
	if policy.Window <= 0 {
		policy = domain.DefaultQuotaPolicy()
	}
	return &RedisTracker{client: client, policy: policy, now: time.Now}
}

// CheckAndReserve atomically consumes one reservation from the key's window.
func (t *RedisTracker) CheckAndReserve(ctx context.Context, key string, tier domain.Tier) (domain.QuotaDecision, error) {
	limit := t.policy.Limit(tier)

	res, err := reserveScript.Run(ctx, t.client,
		[]string{t.key(key)},
		t.policy.Window.Milliseconds(),
		limit,
	).Int64Slice()
	if err != nil {
		return domain.QuotaDecision{}, fmt.Errorf("quota reserve: %w", err)
	}
	if len(res) != 3 {
		return domain.QuotaDecision{}, fmt.Errorf("quota reserve: unexpected script reply of length %d", len(res))
	}

	count, pttl, allowed := res[0], res[1], res[2] == 1
	return domain.QuotaDecision{
		Allowed:   allowed,
		Tier:      tier,
		Remaining: limit - int(count),
		ResetAt:   t.resetAt(pttl),
	}, nil
}

// Remaining reports the key's unused reservations without consuming one.
func (t *RedisTracker) Remaining(ctx context.Context, key string, tier domain.Tier) (domain.QuotaDecision, error) {
	limit := t.policy.Limit(tier)

	pipe := t.client.Pipeline()
	getCmd := pipe.Get(ctx, t.key(key))
	pttlCmd := pipe.PTTL(ctx, t.key(key))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return domain.QuotaDecision{}, fmt.Errorf("quota remaining: %w", err)
	}

	count, err := getCmd.Int64()
	if err == redis.Nil {
		// No open window: full quota, reset time unknown until first use.
		return domain.QuotaDecision{Allowed: true, Tier: tier, Remaining: limit}, nil
	}
	if err != nil {
		return domain.QuotaDecision{}, fmt.Errorf("quota remaining: %w", err)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return domain.QuotaDecision{
		Allowed:   remaining > 0,
		Tier:      tier,
		Remaining: remaining,
		ResetAt:   t.resetAt(pttlCmd.Val().Milliseconds()),
	}, nil
}

func (t *RedisTracker) key(key string) string {
	return "quota:" + key
}

func (t *RedisTracker) resetAt(pttlMillis int64) time.Time {
	if pttlMillis <= 0 {
		return time.Time{}
	}
	return t.now().UTC().Add(time.Duration(pttlMillis) * time.Millisecond)
}
