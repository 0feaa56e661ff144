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

type invitationUsecaser interface {
	Invite(ctx context.Context, p *domain.Principal, in usecase.InviteInput) (*domain.User, error)
	AcceptInvitation(ctx context.Context, in usecase.AcceptInvitationInput, meta domain.SignInMeta) (*usecase.SignInResult, error)
}

type InvitationHandler struct {
	invitations invitationUsecaser
	logger      *slog.Logger
}

func NewInvitationHandler(invitations invitationUsecaser, logger *slog.Logger) *InvitationHandler {
	return &InvitationHandler{
		invitations: invitations,
		logger:      logger.With("component", "invitation_handler"),
	}
}

type inviteRequest struct {
	Email string `json:"email" binding:"required,max=254"`
	Name  string `json:"name"  binding:"max=100"`
}

// POST /auth/invitation
func (h *InvitationHandler) Invite(c *gin.Context) {
	var req inviteRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.invitations.Invite(c.Request.Context(), middleware.CurrentPrincipal(c), usecase.InviteInput{
		Email: req.Email,
		Name:  req.Name,
	})
	if err != nil {
		respondError(c, h.logger, "invite", err)
		return
	}
	c.JSON(http.StatusCreated, toUserResponse(user))
}

type acceptInvitationRequest struct {
	Token                string  `json:"invitation_token"      binding:"required"`
	Password             string  `json:"password"              binding:"required"`
	PasswordConfirmation string  `json:"password_confirmation"`
	Name                 *string `json:"name"`
}

// PUT /auth/invitation
// Accepting signs the invitee in; the response matches POST /auth/sign_in.
func (h *InvitationHandler) Accept(c *gin.Context) {
	var req acceptInvitationRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.invitations.AcceptInvitation(c.Request.Context(), usecase.AcceptInvitationInput{
		Token:                req.Token,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
		Name:                 req.Name,
	}, signInMeta(c))
	if err != nil {
		respondError(c, h.logger, "accept invitation", err)
		return
	}

	c.Header("Authorization", "Bearer "+res.Token)
	c.JSON(http.StatusCreated, signInResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      toUserResponse(res.User),
	})
}
