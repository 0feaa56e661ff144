package middleware

import (
	"strconv"
	"time"

	"github.com/ErlanBelekov/sessionauth/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records latency and count per route template. Requests that match
// no route share the "unmatched" label to keep cardinality bounded.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := []string{c.Request.Method, route, strconv.Itoa(c.Writer.Status())}
		metrics.HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(labels...).Inc()
	}
}
