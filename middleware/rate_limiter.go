// middleware/rate_limiter.go
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/controlcoreio/control-core-012025-sub001/db"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
)

// LimitFunc reports whether one more request under key fits the window.
type LimitFunc func(ctx context.Context, key string, limit int, per time.Duration) (bool, error)

// RateLimiter limits requests per client IP with the Redis sliding window.
func RateLimiter(limit int, per time.Duration) gin.HandlerFunc {
	return RateLimiterWith(db.RateLimit, limit, per)
}

// RateLimiterWith lets the limit check be swapped out. When the check itself
// fails the request is let through; resolution must not depend on Redis.
func RateLimiterWith(check LimitFunc, limit int, per time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		allowed, err := check(c, key, limit, per)
		if err != nil {
			logger.Warn("Rate limiting unavailable, allowing request", zap.Error(err), zap.String("ip", key))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Duration", per.String())

		if !allowed {
			logger.Warn("Rate limit exceeded",
				zap.String("ip", key),
				zap.Int("limit", limit),
				zap.Duration("per", per))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}
