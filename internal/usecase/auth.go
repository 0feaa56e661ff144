package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	"github.com/ErlanBelekov/sessionauth/internal/metrics"
	"github.com/ErlanBelekov/sessionauth/internal/password"
	"github.com/ErlanBelekov/sessionauth/internal/repository"
	"github.com/ErlanBelekov/sessionauth/internal/token"
	"github.com/google/uuid"
)

const (
	maxUserAgentLen = 512
	// Skip last_used_at writes for sessions touched more recently than this.
	touchInterval = time.Minute
)

// Notifier is the mail surface the auth flows need.
type Notifier interface {
	ConfirmationInstructions(ctx context.Context, to, name, rawToken string) error
	ResetPasswordInstructions(ctx context.Context, to, name, rawToken string, validFor time.Duration) error
	UnlockInstructions(ctx context.Context, to, name, rawToken string) error
	InvitationInstructions(ctx context.Context, to, name, inviter, rawToken string, validFor time.Duration) error
	PasswordChanged(ctx context.Context, to, name string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
	CompareDummy(password string)
}

type TokenCodec interface {
	Issue(userID, sessionToken string, now time.Time) (string, time.Time, error)
	Parse(raw string) (*token.Claims, error)
}

// Policy holds the tunables of every auth flow.
type Policy struct {
	Lockout     domain.LockoutPolicy
	MaxSessions int

	RequireConfirmation bool
	ConfirmationGrace   time.Duration // unconfirmed users may sign in this long after sign-up
	ConfirmWithin       time.Duration // 0 = confirmation tokens never expire

	ResetPasswordWithin time.Duration
	InviteFor           time.Duration // 0 = invitations never expire

	// Paranoid hides whether an email is registered from the recovery,
	// confirmation and unlock request endpoints.
	Paranoid bool
}

type AuthUsecase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	hasher   PasswordHasher
	tokens   TokenCodec
	mailer   Notifier
	policy   Policy
	logger   *slog.Logger
	now      func() time.Time
	random   io.Reader
}

func NewAuthUsecase(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	hasher PasswordHasher,
	tokens TokenCodec,
	mailer Notifier,
	policy Policy,
	logger *slog.Logger,
) *AuthUsecase {
	return &AuthUsecase{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		mailer:   mailer,
		policy:   policy,
		logger:   logger.With("component", "auth_usecase"),
		now:      time.Now,
		random:   rand.Reader,
	}
}

// WithClock replaces time.Now; used by tests to pin expiry boundaries.
func (u *AuthUsecase) WithClock(now func() time.Time) *AuthUsecase {
	u.now = now
	return u
}

type SignInResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
	Session   *domain.Session
}

// SignIn checks credentials, runs the lockout state machine and opens a new
// session, evicting the oldest ones beyond the per-user limit.
func (u *AuthUsecase) SignIn(ctx context.Context, emailAddr, pass string, meta domain.SignInMeta) (*SignInResult, error) {
	now := u.now()

	user, err := u.users.FindByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			u.hasher.CompareDummy(pass)
			metrics.SignInsTotal.WithLabelValues("unknown_user").Inc()
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	lock := u.policy.Lockout
	if lock.LockExpired(user, now) {
		lock.Reset(user)
		if err := u.users.UpdateLockState(ctx, user.ID, user.LockState()); err != nil {
			return nil, fmt.Errorf("clear expired lock: %w", err)
		}
		metrics.UnlocksTotal.WithLabelValues("time").Inc()
	}
	if lock.IsLocked(user, now) {
		metrics.SignInsTotal.WithLabelValues("locked").Inc()
		return nil, domain.ErrAccountLocked
	}

	if err := u.hasher.Compare(user.PasswordHash, pass); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			return nil, fmt.Errorf("compare password: %w", err)
		}
		return nil, u.registerFailure(ctx, user, now)
	}

	if user.InvitationPending() {
		metrics.SignInsTotal.WithLabelValues("invitation_pending").Inc()
		return nil, domain.ErrInvitationPending
	}
	if !u.mayAccessUnconfirmed(user, now) {
		metrics.SignInsTotal.WithLabelValues("unconfirmed").Inc()
		return nil, domain.ErrUnconfirmed
	}

	if err := u.users.RecordSignIn(ctx, user.ID, now, meta.IP); err != nil {
		return nil, fmt.Errorf("record sign in: %w", err)
	}
	lock.Reset(user)

	result, err := u.startSession(ctx, user, meta, now)
	if err != nil {
		return nil, err
	}
	metrics.SignInsTotal.WithLabelValues("success").Inc()
	u.logger.InfoContext(ctx, "signed in", "user_id", user.ID, "session_id", result.Session.ID)
	return result, nil
}

func (u *AuthUsecase) registerFailure(ctx context.Context, user *domain.User, now time.Time) error {
	lock := u.policy.Lockout
	lockedNow := lock.RegisterFailure(user, now)

	var rawUnlock string
	if lockedNow && lock.Strategy.UsesEmail() {
		raw, hash, err := u.newToken()
		if err != nil {
			return err
		}
		rawUnlock = raw
		user.UnlockTokenHash = &hash
	}

	if err := u.users.UpdateLockState(ctx, user.ID, user.LockState()); err != nil {
		return fmt.Errorf("update lock state: %w", err)
	}

	if !lockedNow {
		metrics.SignInsTotal.WithLabelValues("invalid_password").Inc()
		return domain.ErrInvalidCredentials
	}

	metrics.SignInsTotal.WithLabelValues("locked").Inc()
	metrics.LockoutsTotal.Inc()
	u.logger.WarnContext(ctx, "account locked", "user_id", user.ID, "failed_attempts", user.FailedAttempts)

	u.revokeAll(ctx, user.ID, "", "locked")

	if rawUnlock != "" {
		if err := u.mailer.UnlockInstructions(ctx, user.Email, user.Name, rawUnlock); err != nil {
			u.logger.ErrorContext(ctx, "send unlock instructions", "user_id", user.ID, "error", err)
		}
	}
	return domain.ErrAccountLocked
}

func (u *AuthUsecase) mayAccessUnconfirmed(user *domain.User, now time.Time) bool {
	if !u.policy.RequireConfirmation || user.Confirmed() {
		return true
	}
	if u.policy.ConfirmationGrace <= 0 {
		return false
	}
	since := user.CreatedAt
	if user.ConfirmationSentAt != nil {
		since = *user.ConfirmationSentAt
	}
	return now.Before(since.Add(u.policy.ConfirmationGrace))
}

func (u *AuthUsecase) startSession(ctx context.Context, user *domain.User, meta domain.SignInMeta, now time.Time) (*SignInResult, error) {
	raw, hash, err := u.newToken()
	if err != nil {
		return nil, err
	}

	signed, expiresAt, err := u.tokens.Issue(user.ID, raw, now)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	session, evicted, err := u.sessions.Create(ctx, &domain.Session{
		UserID:    user.ID,
		TokenHash: hash,
		UserAgent: truncate(meta.UserAgent, maxUserAgentLen),
		IP:        meta.IP,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}, u.policy.MaxSessions)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	metrics.SessionsCreatedTotal.Inc()
	if evicted > 0 {
		metrics.SessionsEvictedTotal.Add(float64(evicted))
		u.logger.InfoContext(ctx, "evicted oldest sessions", "user_id", user.ID, "count", evicted)
	}

	return &SignInResult{Token: signed, ExpiresAt: expiresAt, User: user, Session: session}, nil
}

// Authenticate resolves a bearer token to the caller. Every credential problem
// wraps domain.ErrUnauthorized; any other error is an infrastructure failure.
func (u *AuthUsecase) Authenticate(ctx context.Context, rawToken string) (*domain.Principal, error) {
	claims, err := u.tokens.Parse(rawToken)
	if err != nil {
		metrics.TokenRejectionsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}

	now := u.now()
	session, err := u.sessions.FindActive(ctx, claims.Subject, hashToken(claims.SessionID), now)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			metrics.TokenRejectionsTotal.WithLabelValues("revoked").Inc()
			return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	user, err := u.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.TokenRejectionsTotal.WithLabelValues("user_gone").Inc()
			return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if u.policy.Lockout.IsLocked(user, now) {
		metrics.TokenRejectionsTotal.WithLabelValues("locked").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, domain.ErrAccountLocked)
	}

	if now.Sub(session.LastUsedAt) >= touchInterval {
		if err := u.sessions.Touch(ctx, session.ID, now); err != nil {
			u.logger.WarnContext(ctx, "touch session", "session_id", session.ID, "error", err)
		} else {
			session.LastUsedAt = now
		}
	}

	return &domain.Principal{User: user, Session: session}, nil
}

func (u *AuthUsecase) SignOut(ctx context.Context, p *domain.Principal) error {
	if err := u.sessions.Delete(ctx, p.User.ID, p.Session.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	metrics.SessionsRevokedTotal.WithLabelValues("sign_out").Inc()
	return nil
}

// SignOutEverywhere ends every session of the caller, including the current one.
func (u *AuthUsecase) SignOutEverywhere(ctx context.Context, p *domain.Principal) (int64, error) {
	n, err := u.sessions.DeleteAllForUser(ctx, p.User.ID, "")
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	metrics.SessionsRevokedTotal.WithLabelValues("sign_out_everywhere").Add(float64(n))
	return n, nil
}

func (u *AuthUsecase) ListSessions(ctx context.Context, p *domain.Principal) ([]*domain.Session, error) {
	sessions, err := u.sessions.ListForUser(ctx, p.User.ID, u.now())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// RevokeSession ends one of the caller's sessions. Ids that are not UUIDs
// cannot name a session and are reported as not found.
func (u *AuthUsecase) RevokeSession(ctx context.Context, p *domain.Principal, sessionID string) error {
	if uuid.Validate(sessionID) != nil {
		return domain.ErrSessionNotFound
	}
	if err := u.sessions.Delete(ctx, p.User.ID, sessionID); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrSessionNotFound
		}
		return fmt.Errorf("delete session: %w", err)
	}
	metrics.SessionsRevokedTotal.WithLabelValues("revoked").Inc()
	return nil
}

// revokeAll drops the user's sessions as a side effect of another flow; a
// failure is logged rather than failing that flow.
func (u *AuthUsecase) revokeAll(ctx context.Context, userID, exceptID, reason string) {
	n, err := u.sessions.DeleteAllForUser(ctx, userID, exceptID)
	if err != nil {
		u.logger.ErrorContext(ctx, "revoke sessions", "user_id", userID, "reason", reason, "error", err)
		return
	}
	metrics.SessionsRevokedTotal.WithLabelValues(reason).Add(float64(n))
}
