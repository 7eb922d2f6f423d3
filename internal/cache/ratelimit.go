package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateLimitAccountPrefix namespaces per-account request buckets.
const rateLimitAccountPrefix = "ratelimit:account:"

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// accountBucketScript refills a token bucket by elapsed milliseconds and
// takes one token if available. The key expires once the bucket would be
// full again, so idle accounts cost nothing.
//
// KEYS[1] bucket; ARGV: tokens per ms, capacity, now in ms.
// Returns {allowed, remaining, ms until next token, ms until full}.
var accountBucketScript = redis.NewScript(`
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
	tokens = capacity
	ts = now
end
if now > ts then
	tokens = math.min(capacity, tokens + (now - ts) * rate)
end

local allowed = 0
local wait = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	wait = math.ceil((1 - tokens) / rate)
end

local full = math.ceil((capacity - tokens) / rate)
redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', KEYS[1], math.max(full, 1000))

return {allowed, math.floor(tokens), wait, full}
`)

// CheckAccountRateLimit takes one request from the account's bucket, which
// refills at ratePerMinute up to burst. A ratePerMinute of zero disables limiting.
// Redis failures are returned; callers decide whether to fail open.
func (c *Cache) CheckAccountRateLimit(ctx context.Context, accountID string, ratePerMinute, burst int) (*RateLimitResult, error) {
	now := time.Now()
	if ratePerMinute <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst), ResetAt: now}, nil
	}
	if burst < 1 {
		burst = 1
	}

	perMs := float64(ratePerMinute) / float64(time.Minute/time.Millisecond)
	out, err := accountBucketScript.Run(ctx, c.client,
		[]string{rateLimitAccountPrefix + hashAccountID(accountID)},
		perMs, burst, now.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("rate limit script: unexpected reply %v", out)
	}

	return &RateLimitResult{
		Allowed:    out[0] == 1,
		Remaining:  out[1],
		RetryAfter: time.Duration(out[2]) * time.Millisecond,
		ResetAt:    now.Add(time.Duration(out[3]) * time.Millisecond),
	}, nil
}

// hashAccountID keeps caller-supplied ids out of the key space verbatim.
func hashAccountID(accountID string) string {
	hash := sha256.Sum256([]byte(accountID))
	return hex.EncodeToString(hash[:8])
}
