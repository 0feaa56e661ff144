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
	"github.com/ErlanBelekov/sessionauth/internal/health"
	"github.com/ErlanBelekov/sessionauth/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/sessionauth/internal/log"
	"github.com/ErlanBelekov/sessionauth/internal/metrics"
	"github.com/ErlanBelekov/sessionauth/internal/sweeper"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := ctxlog.New(os.Stdout, cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{Name: "sessionauth-sweeper", MaxConns: 4})
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	logger.Info("db connected")

	metrics.Register()
	checker := health.NewChecker(map[string]health.Pinger{"postgres": pool}, logger, prometheus.DefaultRegisterer)

	s := sweeper.New(
		postgres.NewUserRepository(pool),
		postgres.NewSessionRepository(pool),
		cfg.LockoutPolicy(),
		cfg.ResetPasswordWithin,
		logger,
	)

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	if err := s.Run(ctx, cfg.SweepSchedule); err != nil {
		logger.Error("sweeper", "error", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("sweeper shut down")
}
