package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "anonymizer:ratelimit:"

// Token bucket refilled continuously at ARGV[2] tokens per second, capped at
// ARGV[1]. ARGV[3] is the current time in milliseconds.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local burst = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(bucket[1]) or burst
local ts = tonumber(bucket[2]) or now

local elapsed = math.max(0, now - ts)
tokens = math.min(burst, tokens + elapsed * rate / 1000)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call("HSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil(burst / rate * 1000) + 1000)
return allowed
`)

// RedisLimiter shares token buckets between replicas through Redis.
type RedisLimiter struct {
	client    *redis.Client
	perSecond int
	burst     int
	now       func() time.Time
}

// NewRedisLimiter returns a limiter backed by the Redis server at redisURL.
// Connections are opened on first use; call Ping to check the server.
func NewRedisLimiter(redisURL string, perSecond, burst int) (*RedisLimiter, error) {
	if perSecond < 1 {
		return nil, fmt.Errorf("redis rate limit needs at least 1 request per second, got %d", perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &RedisLimiter{
		client:    redis.NewClient(opt),
		perSecond: perSecond,
		burst:     burst,
		now:       time.Now,
	}, nil
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	allowed, err := tokenBucket.Run(ctx, r.client, []string{keyPrefix + key},
		r.burst, r.perSecond, r.now().UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("running token bucket script: %w", err)
	}
	return allowed == 1, nil
}

// Ping checks the connection to Redis.
func (r *RedisLimiter) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (r *RedisLimiter) Close() error {
	return r.client.Close()
}
