package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window limiter on Redis, counted per key (here: per
// authenticated user on the send path).
type RateLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (r *RateLimiter) ByUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := UserID(c)
		if userID == "" {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		key := r.prefix + ":ratelimit:" + userID
		count, err := r.client.Incr(ctx, key).Result()
		if err != nil {
			// The limiter is protective, not load-bearing; let traffic
			// through when Redis is unavailable.
			return c.Next()
		}
		if count == 1 {
			_ = r.client.Expire(ctx, key, r.window).Err()
		}
		if count > int64(r.limit) {
			return c.Status(http.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
