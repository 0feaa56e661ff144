package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	"github.com/gin-gonic/gin"
)

const (
	errInternalServer     = "Internal server error"
	errMalformedJSON      = "Malformed JSON"
	errUnauthorized       = "Unauthorized"
	errInvalidCredentials = "Invalid email or password."
	errAccountLocked      = "Your account is locked."
	errUnconfirmed        = "You have to confirm your email address before continuing."
	errInvitationPending  = "You have a pending invitation, accept it to finish creating your account."
	errEmailNotFound      = "Email not found"
	errTokenInvalid       = "Token is invalid"
	errTokenExpired       = "Token has expired, please request a new one"
	errSessionNotFound    = "Session not found"
	errNotFound           = "Not found"
)

// respondError maps usecase errors to a status and body. Anything it does not
// recognise is logged and reported as a 500.
func respondError(c *gin.Context, logger *slog.Logger, op string, err error) {
	var verrs domain.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": verrs})
	case errors.Is(err, domain.ErrEmailTaken):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": domain.ValidationErrors{"email": {"has already been taken"}}})
	case errors.Is(err, domain.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
	case errors.Is(err, domain.ErrAccountLocked):
		c.JSON(http.StatusUnauthorized, gin.H{"error": errAccountLocked})
	case errors.Is(err, domain.ErrUnconfirmed):
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnconfirmed})
	case errors.Is(err, domain.ErrInvitationPending):
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInvitationPending})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
	case errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errEmailNotFound})
	case errors.Is(err, domain.ErrTokenNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errTokenInvalid})
	case errors.Is(err, domain.ErrTokenExpired):
		c.JSON(http.StatusGone, gin.H{"error": errTokenExpired})
	case errors.Is(err, domain.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errSessionNotFound})
	case errors.Is(err, domain.ErrUnlockNotAllowed):
		c.JSON(http.StatusNotFound, gin.H{"error": errNotFound})
	default:
		logger.ErrorContext(c.Request.Context(), op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}
