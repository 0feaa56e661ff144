package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	ctxlog "github.com/ErlanBelekov/sessionauth/internal/log"
	"github.com/gin-gonic/gin"
)

const (
	errUnauthorized   = "Unauthorized"
	errInternalServer = "Internal server error"

	principalKey = "principal"
)

type authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*domain.Principal, error)
}

// Auth resolves the Bearer token to a session and sets the principal in the
// gin context. Revoked, expired and forged tokens all get the same 401.
func Auth(auth authenticator, logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "auth_middleware")
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		rawToken, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || rawToken == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		p, err := auth.Authenticate(c.Request.Context(), rawToken)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				logger.DebugContext(c.Request.Context(), "token rejected", "error", err)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
				return
			}
			logger.ErrorContext(c.Request.Context(), "authenticate", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
			return
		}

		c.Set(principalKey, p)
		c.Request = c.Request.WithContext(ctxlog.WithUser(c.Request.Context(), p.User.ID))
		c.Next()
	}
}

// CurrentPrincipal returns the principal set by Auth, or nil on an
// unauthenticated route.
func CurrentPrincipal(c *gin.Context) *domain.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*domain.Principal)
	return p
}
