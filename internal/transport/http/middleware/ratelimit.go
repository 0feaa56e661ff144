package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/ErlanBelekov/sessionauth/internal/metrics"
	"github.com/ErlanBelekov/sessionauth/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

const errTooManyRequests = "Too many requests, please try again later."

type limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Result, error)
}

// RateLimit throttles a route group per client IP. When the limiter's backend
// is unavailable requests are let through.
func RateLimit(l limiter, group string, logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "rate_limit", "group", group)
	return func(c *gin.Context) {
		res, err := l.Allow(c.Request.Context(), group+":"+c.ClientIP())
		if err != nil {
			logger.WarnContext(c.Request.Context(), "rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		if !res.Allowed {
			metrics.RateLimitedTotal.WithLabelValues(group).Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": errTooManyRequests})
			return
		}
		c.Next()
	}
}
