package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	"github.com/ErlanBelekov/sessionauth/internal/metrics"
	"github.com/ErlanBelekov/sessionauth/internal/requestid"
	"github.com/robfig/cron/v3"
)

type sessionStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type userStore interface {
	UnlockExpired(ctx context.Context, lockedBefore time.Time) (int64, error)
	ClearExpiredResetTokens(ctx context.Context, sentBefore time.Time) (int64, error)
}

// Sweeper removes state that has outlived its usefulness: expired sessions,
// elapsed time locks and stale password reset tokens.
type Sweeper struct {
	users       userStore
	sessions    sessionStore
	lockout     domain.LockoutPolicy
	resetWithin time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

func New(users userStore, sessions sessionStore, lockout domain.LockoutPolicy, resetWithin time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		users:       users,
		sessions:    sessions,
		lockout:     lockout,
		resetWithin: resetWithin,
		logger:      logger.With("component", "sweeper"),
		now:         time.Now,
	}
}

// Run sweeps on the given cron schedule until ctx is cancelled. A cycle still
// running when the next one is due causes that one to be skipped.
func (s *Sweeper) Run(ctx context.Context, schedule string) error {
	cl := cronLogger{s.logger}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(schedule, func() { s.Sweep(requestid.With(ctx, requestid.New())) }); err != nil {
		return fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}

	s.logger.Info("sweeper started", "schedule", schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("sweeper stopped")
	return nil
}

// Sweep runs one cycle. A failing step is logged and the remaining steps still run.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := s.now()
	defer func() {
		metrics.SweeperCycleDuration.Observe(time.Since(start).Seconds())
	}()

	s.step(ctx, "sessions", func() (int64, error) {
		return s.sessions.DeleteExpired(ctx, start)
	})

	if s.lockout.Enabled() && s.lockout.Strategy.UsesTime() {
		s.step(ctx, "locks", func() (int64, error) {
			return s.users.UnlockExpired(ctx, start.Add(-s.lockout.UnlockAfter))
		})
	}

	if s.resetWithin > 0 {
		s.step(ctx, "reset_tokens", func() (int64, error) {
			return s.users.ClearExpiredResetTokens(ctx, start.Add(-s.resetWithin))
		})
	}
}

func (s *Sweeper) step(ctx context.Context, kind string, fn func() (int64, error)) {
	n, err := fn()
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep failed", "kind", kind, "error", err)
		return
	}
	if n > 0 {
		metrics.SweeperRemovedTotal.WithLabelValues(kind).Add(float64(n))
		if kind == "locks" {
			metrics.UnlocksTotal.WithLabelValues("time").Add(float64(n))
		}
		s.logger.InfoContext(ctx, "swept", "kind", kind, "count", n)
	}
}

// cronLogger routes cron's own logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
