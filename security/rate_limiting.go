package security

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"

	"ticket-platform/monitoring"
)

type RateLimiter struct {
	redis   redis.Cmdable
	limit   int64
	window  time.Duration
	monitor *monitoring.Monitor
}

func NewRateLimiter(redisClient redis.Cmdable, perMinute int, monitor *monitoring.Monitor) *RateLimiter {
	return &RateLimiter{
		redis:   redisClient,
		limit:   int64(perMinute),
		window:  time.Minute,
		monitor: monitor,
	}
}

// Limit caps requests per client IP on one route within a fixed window.
// Redis failures let the request through.
func (r *RateLimiter) Limit(route string) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if r.limit <= 0 {
			return e.Next()
		}

		ctx := e.Request.Context()
		key := fmt.Sprintf("ratelimit:%s:%s", route, e.RealIP())

		count, err := r.redis.Incr(ctx, key).Result()
		if err != nil {
			slog.Warn("rate limiter unavailable", "route", route, "error", err)
			return e.Next()
		}
		if count == 1 {
			r.redis.Expire(ctx, key, r.window)
		}

		if count > r.limit {
			r.monitor.TrackRateLimited(route)
			return e.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}

		return e.Next()
	}
}

// Anti-bot protection
func (r *RateLimiter) AntiBot() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if r.isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
			return e.JSON(http.StatusForbidden, map[string]string{
				"error": "Access denied",
			})
		}
		return e.Next()
	}
}

func (r *RateLimiter) isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}
