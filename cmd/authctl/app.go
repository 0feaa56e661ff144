package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ErlanBelekov/sessionauth/config"
	"github.com/ErlanBelekov/sessionauth/internal/email"
	"github.com/ErlanBelekov/sessionauth/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/sessionauth/internal/log"
	"github.com/ErlanBelekov/sessionauth/internal/password"
	"github.com/ErlanBelekov/sessionauth/internal/token"
	"github.com/ErlanBelekov/sessionauth/internal/usecase"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type app struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	auth   *usecase.AuthUsecase
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := ctxlog.New(os.Stderr, cfg.Env, cfg.SlogLevel())

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{Name: "authctl", MaxConns: 2})
	if err != nil {
		return nil, err
	}

	mailer := email.NewMailer(email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger), cfg.AppBaseURL, logger)
	auth := usecase.NewAuthUsecase(
		postgres.NewUserRepository(pool),
		postgres.NewSessionRepository(pool),
		password.NewHasher(bcrypt.DefaultCost),
		token.NewCodec([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTTTL),
		mailer,
		cfg.AuthPolicy(),
		logger,
	)

	return &app{cfg: cfg, logger: logger, pool: pool, auth: auth}, nil
}

func (a *app) Close() {
	a.pool.Close()
}

func (a *app) migrate(ctx context.Context, out io.Writer, statusOnly bool) error {
	if !statusOnly {
		if err := postgres.Migrate(ctx, a.pool); err != nil {
			return err
		}
	}
	version, err := postgres.MigrationVersion(ctx, a.pool)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "schema version: %d\n", version)
	return nil
}

// seed creates or refreshes a confirmed user so the sign-in flow can be
// exercised without a mail round trip.
func (a *app) seed(ctx context.Context, out io.Writer, emailAddr, pw, name string) error {
	user, err := a.auth.EnsureUser(ctx, emailAddr, pw, name)
	if err != nil {
		return err
	}

	base := "http://localhost:" + a.cfg.Port
	fmt.Fprintln(out, "Seed complete")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  User:     %s\n", user.Email)
	fmt.Fprintf(out, "  User ID:  %s\n", user.ID)
	fmt.Fprintf(out, "  Password: %s\n", pw)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "How to test:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "    curl -s -X POST %s/auth/sign_in \\\n", base)
	fmt.Fprintf(out, "      -H 'Content-Type: application/json' \\\n")
	fmt.Fprintf(out, "      -d '{\"email\":\"%s\",\"password\":\"%s\"}'\n", user.Email, pw)
	fmt.Fprintln(out, "    # → {\"token\":\"eyJ...\",...}")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "    curl -s %s/auth/sessions -H \"Authorization: Bearer $JWT\"\n", base)
	return nil
}
