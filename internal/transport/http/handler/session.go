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

// sessionUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type sessionUsecaser interface {
	SignIn(ctx context.Context, email, password string, meta domain.SignInMeta) (*usecase.SignInResult, error)
	SignOut(ctx context.Context, p *domain.Principal) error
	SignOutEverywhere(ctx context.Context, p *domain.Principal) (int64, error)
	ListSessions(ctx context.Context, p *domain.Principal) ([]*domain.Session, error)
	RevokeSession(ctx context.Context, p *domain.Principal, sessionID string) error
}

type SessionHandler struct {
	sessions sessionUsecaser
	logger   *slog.Logger
}

func NewSessionHandler(sessions sessionUsecaser, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger.With("component", "session_handler"),
	}
}

type signInRequest struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /auth/sign_in
// The token is returned in the body and in the Authorization header.
func (h *SessionHandler) SignIn(c *gin.Context) {
	var req signInRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.sessions.SignIn(c.Request.Context(), req.Email, req.Password, signInMeta(c))
	if err != nil {
		respondError(c, h.logger, "sign in", err)
		return
	}

	c.Header("Authorization", "Bearer "+res.Token)
	c.JSON(http.StatusCreated, signInResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      toUserResponse(res.User),
	})
}

// DELETE /auth/sign_out
func (h *SessionHandler) SignOut(c *gin.Context) {
	if err := h.sessions.SignOut(c.Request.Context(), middleware.CurrentPrincipal(c)); err != nil {
		respondError(c, h.logger, "sign out", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /auth/sessions
func (h *SessionHandler) SignOutEverywhere(c *gin.Context) {
	if _, err := h.sessions.SignOutEverywhere(c.Request.Context(), middleware.CurrentPrincipal(c)); err != nil {
		respondError(c, h.logger, "sign out everywhere", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /auth/sessions
func (h *SessionHandler) List(c *gin.Context) {
	p := middleware.CurrentPrincipal(c)
	sessions, err := h.sessions.ListSessions(c.Request.Context(), p)
	if err != nil {
		respondError(c, h.logger, "list sessions", err)
		return
	}

	items := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, sessionResponse{
			ID:         s.ID,
			UserAgent:  s.UserAgent,
			IP:         s.IP,
			CreatedAt:  s.CreatedAt,
			LastUsedAt: s.LastUsedAt,
			ExpiresAt:  s.ExpiresAt,
			Current:    s.ID == p.Session.ID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": items})
}

// DELETE /auth/sessions/:id
func (h *SessionHandler) Revoke(c *gin.Context) {
	if err := h.sessions.RevokeSession(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id")); err != nil {
		respondError(c, h.logger, "revoke session", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func signInMeta(c *gin.Context) domain.SignInMeta {
	return domain.SignInMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
