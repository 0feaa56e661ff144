package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	"github.com/ErlanBelekov/sessionauth/internal/transport/http/middleware"
	"github.com/ErlanBelekov/sessionauth/internal/usecase"
	"github.com/gin-gonic/gin"
)

type accountUsecaser interface {
	SignUp(ctx context.Context, in usecase.SignUpInput) (*domain.User, error)
	Profile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, p *domain.Principal, in usecase.UpdateProfileInput) (*domain.User, error)
	DeleteAccount(ctx context.Context, p *domain.Principal, currentPassword string) error
}

// AccountHandler serves registration and the signed-in user's profile.
type AccountHandler struct {
	accounts accountUsecaser
	logger   *slog.Logger
}

func NewAccountHandler(accounts accountUsecaser, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		logger:   logger.With("component", "account_handler"),
	}
}

type signUpRequest struct {
	Email                string `json:"email"                 binding:"required,max=254"`
	Password             string `json:"password"              binding:"required"`
	PasswordConfirmation string `json:"password_confirmation"`
	Name                 string `json:"name"                  binding:"max=100"`
}

// POST /auth/registration
func (h *AccountHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.accounts.SignUp(c.Request.Context(), usecase.SignUpInput{
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
		Name:                 req.Name,
	})
	if err != nil {
		respondError(c, h.logger, "sign up", err)
		return
	}
	c.JSON(http.StatusCreated, toUserResponse(user))
}

// GET /auth/profile
func (h *AccountHandler) Profile(c *gin.Context) {
	user, err := h.accounts.Profile(c.Request.Context(), middleware.CurrentPrincipal(c).User.ID)
	if err != nil {
		respondError(c, h.logger, "profile", err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

type updateProfileRequest struct {
	Name                 *string `json:"name"`
	Email                *string `json:"email"`
	Password             *string `json:"password"`
	PasswordConfirmation string  `json:"password_confirmation"`
	CurrentPassword      string  `json:"current_password"`
}

// PATCH /auth/profile
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.accounts.UpdateProfile(c.Request.Context(), middleware.CurrentPrincipal(c), usecase.UpdateProfileInput{
		Name:                 req.Name,
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
		CurrentPassword:      req.CurrentPassword,
	})
	if err != nil {
		respondError(c, h.logger, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

type deleteAccountRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
}

// DELETE /auth/profile
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	var req deleteAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.accounts.DeleteAccount(c.Request.Context(), middleware.CurrentPrincipal(c), req.CurrentPassword); err != nil {
		respondError(c, h.logger, "delete account", err)
		return
	}
	c.Status(http.StatusNoContent)
}
