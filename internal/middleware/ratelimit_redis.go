package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	gemredis "github.com/lihengcn/GeminiEligibilityCheck/internal/redis"
)

var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local windowStart = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = 0
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    else
        resetAt = now + window
    end
    return {0, 0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)

local remaining = limit - count - 1
local resetAt = now + window

return {1, remaining, resetAt}
`)

// RedisRateLimiter shares the sliding window across server processes.
// It fails open when Redis is unreachable.
type RedisRateLimiter struct {
	client *redis.Client
}

var _ Limiter = (*RedisRateLimiter)(nil)

func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

func (rl *RedisRateLimiter) Check(ctx context.Context, key string, limit int) (allowed bool, remaining int, resetAt int64) {
	now := time.Now().Unix()
	window := int64(windowDuration.Seconds())

	result, err := rateLimitScript.Run(ctx, rl.client, []string{gemredis.ClaimRateKey(key)}, now, window, limit).Int64Slice()
	if err != nil {
		log.Warn().Err(err).Str("worker", key).Msg("redis rate limit check failed, allowing request")
		return true, limit - 1, now + window
	}

	if len(result) != 3 {
		log.Warn().Str("worker", key).Msg("unexpected redis rate limit result")
		return true, limit - 1, now + window
	}

	return result[0] == 1, int(result[1]), result[2]
}
