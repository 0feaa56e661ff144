package middleware

import (
	"github.com/ErlanBelekov/sessionauth/internal/requestid"
	"github.com/gin-gonic/gin"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags the request context with a correlation id, echoed back in
// the response header. Only UUIDs are accepted from the client.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := requestid.Accept(c.GetHeader(requestIDHeader))
		c.Request = c.Request.WithContext(requestid.With(c.Request.Context(), id))
		c.Header(requestIDHeader, id)
		c.Next()
	}
}
