package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter decides whether a request may proceed.
type RateLimiter interface {
	Allow(ctx context.Context) (bool, error)
}

// TokenBucketRateLimiter is a Redis-backed token bucket shared across
// service instances.
type TokenBucketRateLimiter struct {
	client *redis.Client
	key    string
	rate   int // tokens added per second
	burst  int // bucket capacity
}

// NewTokenBucketRateLimiter creates a token bucket limiter under the given
// key.
func NewTokenBucketRateLimiter(client *redis.Client, key string, ratePerSec, burst int) *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{
		client: client,
		key:    fmt.Sprintf("rate_limit:%s", key),
		rate:   ratePerSec,
		burst:  burst,
	}
}

// tokenBucketScript refills the bucket based on elapsed time, then tries to
// take one token. Runs atomically on the Redis side.
const tokenBucketScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])

local tokens_key = key .. ":tokens"
local timestamp_key = key .. ":ts"

local tokens = tonumber(redis.call("get", tokens_key) or burst)
local last_update = tonumber(redis.call("get", timestamp_key) or 0)

local elapsed = math.max(0, now - last_update)
local new_tokens = math.min(burst, tokens + elapsed * rate)

if new_tokens < 1 then
	return 0
end

new_tokens = new_tokens - 1

redis.call("setex", tokens_key, 2, new_tokens)
redis.call("setex", timestamp_key, 2, now)

return 1
`

// Allow takes one token from the bucket.
func (l *TokenBucketRateLimiter) Allow(ctx context.Context) (bool, error) {
	if l.client == nil {
		return false, ErrRedisNotAvailable
	}
	now := time.Now().Unix()
	result, err := l.client.Eval(ctx, tokenBucketScript,
		[]string{l.key}, now, l.rate, l.burst).Result()
	if err != nil {
		return false, err
	}
	return result.(int64) == 1, nil
}

// LocalRateLimiter is the in-process fallback used when Redis is
// unavailable. Per-instance only, but keeps a single replica protected.
type LocalRateLimiter struct {
	limiter *rate.Limiter
}

// NewLocalRateLimiter creates an in-process token bucket.
func NewLocalRateLimiter(ratePerSec, burst int) *LocalRateLimiter {
	return &LocalRateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}
}

// Allow takes one token from the local bucket.
func (l *LocalRateLimiter) Allow(ctx context.Context) (bool, error) {
	return l.limiter.Allow(), nil
}

// UserRateLimiter layers a per-user limit on top of a global one.
type UserRateLimiter struct {
	client    *redis.Client
	global    RateLimiter
	keyPrefix string
	rate      int
	burst     int

	mu       sync.Mutex
	limiters map[string]RateLimiter
}

// NewUserRateLimiter creates a two-level limiter. With a nil client both
// levels fall back to in-process buckets.
func NewUserRateLimiter(client *redis.Client, keyPrefix string, globalRate, globalBurst, userRate, userBurst int) *UserRateLimiter {
	var global RateLimiter
	if client != nil {
		global = NewTokenBucketRateLimiter(client, keyPrefix+":global", globalRate, globalBurst)
	} else {
		global = NewLocalRateLimiter(globalRate, globalBurst)
	}
	return &UserRateLimiter{
		client:    client,
		global:    global,
		keyPrefix: keyPrefix,
		rate:      userRate,
		burst:     userBurst,
		limiters:  make(map[string]RateLimiter),
	}
}

func (l *UserRateLimiter) userLimiter(userID string) RateLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[userID]; ok {
		return limiter
	}
	var limiter RateLimiter
	if l.client != nil {
		limiter = NewTokenBucketRateLimiter(l.client, l.keyPrefix+":user:"+userID, l.rate, l.burst)
	} else {
		limiter = NewLocalRateLimiter(l.rate, l.burst)
	}
	l.limiters[userID] = limiter
	return limiter
}

// AllowUser checks the global bucket first, then the user's own bucket.
func (l *UserRateLimiter) AllowUser(ctx context.Context, userID string) (bool, error) {
	allowed, err := l.global.Allow(ctx)
	if err != nil || !allowed {
		return allowed, err
	}
	return l.userLimiter(userID).Allow(ctx)
}
