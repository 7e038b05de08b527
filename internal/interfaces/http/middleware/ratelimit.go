package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/worldvpn/broker/internal/infrastructure/ratelimit"
	"github.com/worldvpn/broker/internal/shared/utils"
)

// RateLimiter throttles requests per client IP. The limit is shared across
// broker instances through the Redis-backed limiter.
type RateLimiter struct {
	limiter ratelimit.Limiter
	limit   int
	window  time.Duration
}

func NewRateLimiter(limiter ratelimit.Limiter, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		limit:   limit,
		window:  window,
	}
}

// Limit returns a Gin middleware that enforces the rate limit per client IP.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ip:%s", c.ClientIP())

		allowed, err := rl.limiter.Allow(c.Request.Context(), key, rl.limit, rl.window)
		if err != nil {
			// If Redis is unavailable, allow the request to avoid blocking all traffic
			c.Next()
			return
		}

		if !allowed {
			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
