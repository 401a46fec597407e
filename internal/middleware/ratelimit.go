package middleware

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy says what a limiter does when Redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the call through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

var errNoRedis = errors.New("redis client is nil")

// Decision is the outcome of one fixed-window check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

func rateLimitKey(resource, id string) string {
	return "rl:" + resource + ":" + id
}

// Allow counts one call by id against resource in a fixed window of the
// given length. Limits are not enforced in the test, development and stress
// environments.
func Allow(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (Decision, error) {
	if rateLimitBypassed() {
		return Decision{Allowed: true, Remaining: limit}, nil
	}
	if rdb == nil {
		return Decision{}, errNoRedis
	}

	key := rateLimitKey(resource, id)
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	if _, err := rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.TTL(ctx, key)
		return nil
	}); err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", resource, err)
	}

	count := incr.Val()
	remainingTTL := ttl.Val()
	// A fresh key, or one left without expiry by a crash between calls.
	if remainingTTL < 0 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit %s: %w", resource, err)
		}
		remainingTTL = window
	}

	d := Decision{Allowed: count <= int64(limit), Remaining: max(limit-int(count), 0)}
	if !d.Allowed {
		d.RetryAfter = remainingTTL
	}
	return d, nil
}

// CheckRateLimit reports whether id may perform another call on resource within window.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	d, err := Allow(ctx, rdb, resource, id, limit, window)
	return d.Allowed, err
}

// RateLimit returns a Fiber middleware enforcing limit requests per window, failing open.
// It keys by the authenticated user when present, otherwise by remote IP.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy is RateLimit with an explicit failure policy.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := "ip:" + c.IP()
		if uid, ok := c.Locals(UserIDLocal).(uint); ok {
			id = "user:" + strconv.FormatUint(uint64(uid), 10)
		}
		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		d, err := Allow(c.UserContext(), rdb, resource, id, limit, window)
		if err != nil {
			if policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit fail-closed", "resource", resource, "error", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "rate limit unavailable"})
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(max(int(d.RetryAfter.Seconds()), 1)))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}
