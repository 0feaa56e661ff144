package httptransport

import (
	"log/slog"

	"github.com/ErlanBelekov/sessionauth/internal/ratelimit"
	"github.com/ErlanBelekov/sessionauth/internal/transport/http/handler"
	"github.com/ErlanBelekov/sessionauth/internal/transport/http/middleware"
	"github.com/ErlanBelekov/sessionauth/internal/usecase"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

// NewRouter wires every auth route. limiter may be nil, which disables rate limiting.
func NewRouter(logger *slog.Logger, auth *usecase.AuthUsecase, limiter *ratelimit.Limiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.NewWithConfig(logger, sloggin.Config{
		WithRequestID: false,
		// Tokens travel in query strings on the confirmation and unlock links.
		Filters: []sloggin.Filter{sloggin.IgnorePath("/auth/confirmation", "/auth/unlock")},
	}))
	r.Use(middleware.Metrics())

	limit := func(group string) gin.HandlerFunc {
		if limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimit(limiter, group, logger)
	}
	authMW := middleware.Auth(auth, logger)

	sessions := handler.NewSessionHandler(auth, logger)
	accounts := handler.NewAccountHandler(auth, logger)
	recovery := handler.NewRecoveryHandler(auth, logger)
	invitations := handler.NewInvitationHandler(auth, logger)

	g := r.Group("/auth")

	g.POST("/sign_in", limit("sign_in"), sessions.SignIn)
	g.DELETE("/sign_out", authMW, sessions.SignOut)
	g.GET("/sessions", authMW, sessions.List)
	g.DELETE("/sessions", authMW, sessions.SignOutEverywhere)
	g.DELETE("/sessions/:id", authMW, sessions.Revoke)

	g.POST("/registration", limit("registration"), accounts.SignUp)
	g.GET("/profile", authMW, accounts.Profile)
	g.PATCH("/profile", authMW, accounts.UpdateProfile)
	g.DELETE("/profile", authMW, accounts.DeleteAccount)

	g.POST("/password", limit("password"), recovery.RequestPasswordReset)
	g.PUT("/password", limit("password"), recovery.ResetPassword)
	g.POST("/confirmation", limit("confirmation"), recovery.ResendConfirmation)
	g.GET("/confirmation", limit("confirmation"), recovery.Confirm)
	g.POST("/unlock", limit("unlock"), recovery.RequestUnlock)
	g.GET("/unlock", limit("unlock"), recovery.Unlock)

	g.POST("/invitation", authMW, invitations.Invite)
	g.PUT("/invitation", limit("invitation"), invitations.Accept)

	return r
}
