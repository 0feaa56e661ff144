package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	"github.com/ErlanBelekov/sessionauth/internal/usecase"
	"github.com/gin-gonic/gin"
)

type recoveryUsecaser interface {
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in usecase.ResetPasswordInput) error
	Confirm(ctx context.Context, rawToken string) (*domain.User, error)
	ResendConfirmation(ctx context.Context, email string) error
	RequestUnlock(ctx context.Context, email string) error
	Unlock(ctx context.Context, rawToken string) error
}

// RecoveryHandler serves the emailed-token flows: password reset, email
// confirmation and account unlock.
type RecoveryHandler struct {
	recovery recoveryUsecaser
	logger   *slog.Logger
}

func NewRecoveryHandler(recovery recoveryUsecaser, logger *slog.Logger) *RecoveryHandler {
	return &RecoveryHandler{
		recovery: recovery,
		logger:   logger.With("component", "recovery_handler"),
	}
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetPasswordRequest struct {
	Token                string `json:"reset_password_token"  binding:"required"`
	Password             string `json:"password"              binding:"required"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// POST /auth/password
func (h *RecoveryHandler) RequestPasswordReset(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.recovery.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, "request password reset", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PUT /auth/password
func (h *RecoveryHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	err := h.recovery.ResetPassword(c.Request.Context(), usecase.ResetPasswordInput{
		Token:                req.Token,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		respondError(c, h.logger, "reset password", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /auth/confirmation
func (h *RecoveryHandler) ResendConfirmation(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.recovery.ResendConfirmation(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, "resend confirmation", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /auth/confirmation?token=<raw>
func (h *RecoveryHandler) Confirm(c *gin.Context) {
	if _, err := h.recovery.Confirm(c.Request.Context(), c.Query("token")); err != nil {
		respondError(c, h.logger, "confirm", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /auth/unlock
func (h *RecoveryHandler) RequestUnlock(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.recovery.RequestUnlock(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, "request unlock", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /auth/unlock?token=<raw>
func (h *RecoveryHandler) Unlock(c *gin.Context) {
	if err := h.recovery.Unlock(c.Request.Context(), c.Query("token")); err != nil {
		respondError(c, h.logger, "unlock", err)
		return
	}
	c.Status(http.StatusNoContent)
}
