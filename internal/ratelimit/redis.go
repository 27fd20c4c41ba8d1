package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
)

const rateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return {0, redis.call("PTTL", KEYS[1])}
end
return {1, 0}
`

// RedisLimiter enforces fixed-window quotas through a single Lua round trip,
// so INCR and PEXPIRE stay atomic across concurrent callers.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	script *redis.Script
}

func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		script: redis.NewScript(rateLimitScript),
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if limit <= 0 || window <= 0 || key == "" {
		return true, 0, nil
	}
	redisKey := key
	if l.prefix != "" {
		redisKey = l.prefix + ":" + key
	}
	ttl := window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}
	res, err := l.script.Run(ctx, l.client, []string{redisKey}, ttl, limit).Int64Slice()
	if err != nil || len(res) != 2 {
		return false, 0, common.NewError(common.CodeServiceUnavailable, "rate limiter unavailable", err)
	}
	if res[0] == 1 {
		return true, 0, nil
	}
	retryAfter := time.Duration(res[1]) * time.Millisecond
	if retryAfter < 0 {
		retryAfter = window
	}
	return false, retryAfter, nil
}
