package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/sessionauth/config"
	"github.com/ErlanBelekov/sessionauth/internal/email"
	"github.com/ErlanBelekov/sessionauth/internal/health"
	"github.com/ErlanBelekov/sessionauth/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/sessionauth/internal/log"
	"github.com/ErlanBelekov/sessionauth/internal/metrics"
	"github.com/ErlanBelekov/sessionauth/internal/password"
	"github.com/ErlanBelekov/sessionauth/internal/ratelimit"
	"github.com/ErlanBelekov/sessionauth/internal/token"
	httptransport "github.com/ErlanBelekov/sessionauth/internal/transport/http"
	"github.com/ErlanBelekov/sessionauth/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := ctxlog.New(os.Stdout, cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{
		Name:             "sessionauth-server",
		MaxConns:         cfg.DBMaxConns,
		StatementTimeout: 5 * time.Second,
	})
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		stop()
		pool.Close()
		log.Fatalf("migrate: %v", err)
	}

	deps := map[string]health.Pinger{"postgres": pool}

	var limiter *ratelimit.Limiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			stop()
			pool.Close()
			log.Fatalf("redis url: %v", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		limiter = ratelimit.New(rdb, cfg.RateLimitMax, cfg.RateLimitWindow)
		deps["redis"] = health.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		logger.Warn("REDIS_URL not set, rate limiting disabled")
	}

	userRepo := postgres.NewUserRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)

	mailer := email.NewMailer(email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger), cfg.AppBaseURL, logger)
	codec := token.NewCodec([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTTTL, token.WithLeeway(5*time.Second))
	authUsecase := usecase.NewAuthUsecase(
		userRepo,
		sessionRepo,
		password.NewHasher(bcrypt.DefaultCost),
		codec,
		mailer,
		cfg.AuthPolicy(),
		logger,
	)

	metrics.Register()
	checker := health.NewChecker(deps, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httptransport.NewRouter(logger, authUsecase, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}
