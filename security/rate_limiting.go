package security

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"event-workflow/internal/status"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

const rateLimitWindow = time.Minute

type RateLimiter struct {
	redis     *redis.Client
	perMinute int64
	now       func() time.Time
}

// NewRateLimiter allows perMinute requests per caller per clock minute.
// perMinute <= 0 disables limiting.
func NewRateLimiter(redisClient *redis.Client, perMinute int) *RateLimiter {
	return &RateLimiter{redis: redisClient, perMinute: int64(perMinute), now: time.Now}
}

// Allow counts one request for identity in the current window.
func (r *RateLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	if r.perMinute <= 0 {
		return true, nil
	}

	key := fmt.Sprintf("ratelimit:%s:%d", identity, r.now().Unix()/int64(rateLimitWindow.Seconds()))
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if count == 1 {
		r.redis.Expire(ctx, key, rateLimitWindow)
	}
	return count <= r.perMinute, nil
}

// Middleware limits mutating requests by authenticated user, or by client IP
// for anonymous callers. Redis failures let the request through.
func (r *RateLimiter) Middleware() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if e.Request.Method == http.MethodGet || e.Request.Method == http.MethodHead {
			return e.Next()
		}

		allowed, err := r.Allow(e.Request.Context(), identify(e))
		if err != nil {
			slog.Warn("Rate limiter unavailable", "error", err)
			return e.Next()
		}
		if !allowed {
			return e.JSON(http.StatusTooManyRequests, status.Outcome{
				Success: false,
				Message: "Too many requests. Please try again later.",
			})
		}
		return e.Next()
	}
}

// RejectBots blocks clients that announce themselves as crawlers.
func RejectBots(e *core.RequestEvent) error {
	if isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
		return e.JSON(http.StatusForbidden, status.Outcome{Success: false, Message: "Access denied."})
	}
	return e.Next()
}

func identify(e *core.RequestEvent) string {
	if e.Auth != nil {
		return "user:" + e.Auth.Id
	}
	return "ip:" + e.RealIP()
}

func isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}
