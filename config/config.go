package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	"github.com/ErlanBelekov/sessionauth/internal/usecase"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"25" validate:"min=1,max=500"`

	// Rate limiting is off when empty.
	RedisURL string `env:"REDIS_URL"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret string        `env:"JWT_SECRET,required" validate:"required,min=32"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"sessionauth" validate:"required"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h" validate:"min=1m"`

	MaxSessions int `env:"MAX_SESSIONS" envDefault:"5" validate:"min=1,max=100"`

	LockoutMaxAttempts int           `env:"LOCKOUT_MAX_ATTEMPTS" envDefault:"5" validate:"min=0,max=100"`
	LockoutWindow      time.Duration `env:"LOCKOUT_WINDOW" envDefault:"1h" validate:"min=0"`
	UnlockStrategy     string        `env:"UNLOCK_STRATEGY" envDefault:"both" validate:"oneof=time email both none"`
	UnlockAfter        time.Duration `env:"UNLOCK_AFTER" envDefault:"1h" validate:"required_if=UnlockStrategy time,required_if=UnlockStrategy both"`

	ResetPasswordWithin time.Duration `env:"RESET_PASSWORD_WITHIN" envDefault:"6h" validate:"min=1m"`
	RequireConfirmation bool          `env:"REQUIRE_CONFIRMATION" envDefault:"true"`
	ConfirmWithin       time.Duration `env:"CONFIRM_WITHIN" envDefault:"72h" validate:"min=0"`
	ConfirmationGrace   time.Duration `env:"CONFIRMATION_GRACE" envDefault:"0s" validate:"min=0"`
	InviteFor           time.Duration `env:"INVITE_FOR" envDefault:"168h" validate:"min=0"`
	Paranoid            bool          `env:"PARANOID" envDefault:"false"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`
	AppBaseURL   string `env:"APP_BASE_URL"   envDefault:"http://localhost:8080" validate:"required,url"`

	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"10" validate:"min=1"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m" validate:"min=1s"`

	SweepSchedule string `env:"SWEEP_SCHEDULE" envDefault:"*/5 * * * *" validate:"required"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) LockoutPolicy() domain.LockoutPolicy {
	return domain.LockoutPolicy{
		MaxAttempts: c.LockoutMaxAttempts,
		Window:      c.LockoutWindow,
		UnlockAfter: c.UnlockAfter,
		Strategy:    domain.UnlockStrategy(c.UnlockStrategy),
	}
}

func (c *Config) AuthPolicy() usecase.Policy {
	return usecase.Policy{
		Lockout:             c.LockoutPolicy(),
		MaxSessions:         c.MaxSessions,
		RequireConfirmation: c.RequireConfirmation,
		ConfirmationGrace:   c.ConfirmationGrace,
		ConfirmWithin:       c.ConfirmWithin,
		ResetPasswordWithin: c.ResetPasswordWithin,
		InviteFor:           c.InviteFor,
		Paranoid:            c.Paranoid,
	}
}
