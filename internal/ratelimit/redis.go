package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// acquireScript checks the tenant cooldown and the per-IP counter and, when
// both pass, takes the quota in the same atomic step.
//
// KEYS[1] tenant key, KEYS[2] ip key
// ARGV[1] cooldown ms, ARGV[2] max per window, ARGV[3] window ms, ARGV[4] "1" if a tenant is set
var acquireScript = redis.NewScript(`
local cooldown = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local tenant = ARGV[4] == "1"

if tenant then
  local ttl = redis.call("PTTL", KEYS[1])
  if ttl > 0 then
    return {0, ttl, "cooldown"}
  end
end

if limit > 0 then
  local count = tonumber(redis.call("GET", KEYS[2]) or "0")
  if count >= limit then
    local ttl = redis.call("PTTL", KEYS[2])
    if ttl < 0 then
      ttl = window
    end
    return {0, ttl, "ip_hourly_limit"}
  end
end

if tenant and cooldown > 0 then
  redis.call("SET", KEYS[1], 1, "PX", cooldown)
end
local current = redis.call("INCR", KEYS[2])
if current == 1 then
  redis.call("PEXPIRE", KEYS[2], window)
end
return {1, 0, ""}
`)

// releaseScript undoes an acquire. The counter never goes below zero.
var releaseScript = redis.NewScript(`
if ARGV[1] == "1" then
  redis.call("DEL", KEYS[1])
end
local count = tonumber(redis.call("GET", KEYS[2]) or "0")
if count > 0 then
  redis.call("DECR", KEYS[2])
end
return 0
`)

const ipWindow = time.Hour

// RedisLimiter shares limits across instances. Redis errors fail open.
type RedisLimiter struct {
	rdb    *redis.Client
	config *Config
	prefix string
}

// NewRedis wraps rdb. The limiter owns rdb and closes it on Close.
func NewRedis(rdb *redis.Client, cfg *Config, prefix string) *RedisLimiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisLimiter{rdb: rdb, config: cfg, prefix: prefix}
}

func (l *RedisLimiter) Close() error {
	return l.rdb.Close()
}

func (l *RedisLimiter) AcquireReservation(ctx context.Context, identifier, ip string) LimitResult {
	keys := []string{l.tenantKey(identifier), l.ipKey(ip)}
	res, err := acquireScript.Run(ctx, l.rdb, keys,
		l.config.TenantCooldown.Milliseconds(),
		l.config.MaxIPPerHour,
		ipWindow.Milliseconds(),
		tenantFlag(identifier),
	).Slice()
	if err != nil {
		l.warn(ctx, err)
		return LimitResult{Allowed: true}
	}
	result, err := parseAcquire(res)
	if err != nil {
		l.warn(ctx, err)
		return LimitResult{Allowed: true}
	}
	return result
}

func (l *RedisLimiter) ReleaseReservation(ctx context.Context, identifier, ip string) {
	keys := []string{l.tenantKey(identifier), l.ipKey(ip)}
	if err := releaseScript.Run(ctx, l.rdb, keys, tenantFlag(identifier)).Err(); err != nil {
		l.warn(ctx, err)
	}
}

func parseAcquire(res []interface{}) (LimitResult, error) {
	if len(res) != 3 {
		return LimitResult{}, fmt.Errorf("unexpected acquire result length %d", len(res))
	}
	allowed, ok := res[0].(int64)
	if !ok {
		return LimitResult{}, fmt.Errorf("unexpected acquire flag type %T", res[0])
	}
	if allowed == 1 {
		return LimitResult{Allowed: true}, nil
	}
	ttl, ok := res[1].(int64)
	if !ok {
		return LimitResult{}, fmt.Errorf("unexpected acquire ttl type %T", res[1])
	}
	reason, _ := res[2].(string)
	return LimitResult{
		Allowed:    false,
		RetryAfter: time.Duration(ttl) * time.Millisecond,
		Reason:     reason,
	}, nil
}

func tenantFlag(identifier string) string {
	if identifier == "" {
		return "0"
	}
	return "1"
}

func (l *RedisLimiter) tenantKey(identifier string) string {
	return l.prefix + ":" + hashKey("reserve:id:", NormalizeIdentifier(identifier))
}

func (l *RedisLimiter) ipKey(ip string) string {
	return l.prefix + ":" + hashKey("reserve:ip:", ip)
}

func (l *RedisLimiter) warn(ctx context.Context, err error) {
	log.Ctx(ctx).Warn().Err(err).Msg("Redis rate limiter error, allowing request")
}
