package api

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type TokenVerifier interface {
	Verify(token string) (string, error)
}

// RequireAuth validates the bearer token and stores the caller's user id in
// request locals.
func RequireAuth(v TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hdr := c.Get("Authorization")
		const pref = "Bearer "
		if !strings.HasPrefix(hdr, pref) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing auth"})
		}
		sub, err := v.Verify(hdr[len(pref):])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals("user_id", sub)
		return c.Next()
	}
}

func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// RateLimiter is a fixed window counter in Redis. When Redis is down it
// falls back to per-key in-process token buckets so the API degrades
// instead of failing closed.
type RateLimiter struct {
	redis  *redis.Client
	prefix string
	limit  int
	window time.Duration

	mu       sync.Mutex
	fallback map[string]*rate.Limiter
}

func NewRateLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:    rdb,
		prefix:   prefix,
		limit:    limit,
		window:   window,
		fallback: make(map[string]*rate.Limiter),
	}
}

func (r *RateLimiter) Middleware(keyFunc func(c *fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := keyFunc(c)
		if !r.allow(c.Context(), key) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}

func (r *RateLimiter) allow(ctx context.Context, key string) bool {
	if r.redis != nil {
		redisKey := fmt.Sprintf("%s:rl:%s", r.prefix, key)
		count, err := r.redis.Incr(ctx, redisKey).Result()
		if err == nil {
			if count == 1 {
				r.redis.Expire(ctx, redisKey, r.window)
			}
			return count <= int64(r.limit)
		}
	}
	return r.local(key).Allow()
}

func (r *RateLimiter) local(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.fallback[key]
	if !ok {
		perSec := float64(r.limit) / r.window.Seconds()
		l = rate.NewLimiter(rate.Limit(perSec), r.limit)
		r.fallback[key] = l
	}
	return l
}
