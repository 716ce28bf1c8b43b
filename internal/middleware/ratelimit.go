package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/tooling-tracker/internal/config"
	"github.com/iliyamo/tooling-tracker/internal/logger"
)

// limiterScript is a token bucket refilled continuously at ARGV[3] tokens
// per millisecond.  It returns {allowed, remaining, wait_ms}.
var limiterScript = redis.NewScript(`
local key      = KEYS[1]
local now      = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate     = tonumber(ARGV[3])
local ttl      = tonumber(ARGV[4])

local tokens = tonumber(redis.call('HGET', key, 't'))
local stamp  = tonumber(redis.call('HGET', key, 's'))
if tokens == nil or stamp == nil then
	tokens, stamp = capacity, now
end
tokens = math.min(capacity, tokens + math.max(0, now - stamp) * rate)

local allowed, wait = 0, 0
if tokens >= 1 then
	allowed = 1
	tokens = tokens - 1
else
	wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', key, 't', tostring(tokens), 's', now)
redis.call('EXPIRE', key, ttl)
return { allowed, math.floor(tokens), wait }
`)

type bucketState struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// take removes one token from the bucket under key.
func take(ctx context.Context, rdb *redis.Client, cfg config.RateLimitConfig, key string, now time.Time) (bucketState, error) {
	ms := cfg.RefillInterval.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	rate := float64(cfg.RefillTokens) / float64(ms)
	ttl := int64(cfg.TTL / time.Second)
	if ttl < 1 {
		ttl = 1
	}
	vals, err := limiterScript.Run(ctx, rdb, []string{key}, now.UnixMilli(), cfg.Capacity, rate, ttl).Result()
	if err != nil {
		return bucketState{}, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return bucketState{}, fmt.Errorf("unexpected limiter result %#v", vals)
	}
	return bucketState{
		Allowed:    asInt64(arr[0]) == 1,
		Remaining:  asInt64(arr[1]),
		RetryAfter: time.Duration(asInt64(arr[2])) * time.Millisecond,
	}, nil
}

// NewTokenBucket limits lifecycle writes with a Redis token bucket keyed
// by caller and tool.  Redis failures let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *logger.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	if log == nil {
		log = logger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			st, err := take(c.Request().Context(), rdb, cfg, key, time.Now())
			if err != nil {
				log.Warn("rate limiter unavailable", "key", key, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(st.Remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if !st.Allowed {
				secs := int(math.Ceil(st.RetryAfter.Seconds()))
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too many logbook writes, slow down",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// rateKey builds the bucket key.  Strategies: ip, user, tool, user_tool
// (default).  Requests without a :id parameter use the route as the tool.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	tool := c.Param("id")
	if tool == "" {
		tool = c.Request().Method + " " + c.Path()
	}
	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		ip := c.RealIP()
		if ip == "" {
			ip = "unknown"
		}
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", userKey(c))
	case "tool":
		parts = append(parts, "tool", tool)
	default:
		parts = append(parts, "user", userKey(c), "tool", tool)
	}
	return strings.Join(parts, ":")
}
