package usecase_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	"github.com/ErlanBelekov/sessionauth/internal/password"
	"github.com/ErlanBelekov/sessionauth/internal/token"
	"github.com/ErlanBelekov/sessionauth/internal/usecase"
)

// ---- fakes ----

type fakeUserRepo struct {
	create                  func(ctx context.Context, u *domain.User) (*domain.User, error)
	findByID                func(ctx context.Context, id string) (*domain.User, error)
	findByEmail             func(ctx context.Context, email string) (*domain.User, error)
	findByToken             func(ctx context.Context, kind domain.TokenKind, tokenHash string) (*domain.User, error)
	update                  func(ctx context.Context, u *domain.User) error
	setToken                func(ctx context.Context, userID string, kind domain.TokenKind, tokenHash string, sentAt time.Time) error
	updateLockState         func(ctx context.Context, userID string, state domain.LockState) error
	recordSignIn            func(ctx context.Context, userID string, at time.Time, ip string) error
	delete                  func(ctx context.Context, userID string) error
	unlockExpired           func(ctx context.Context, lockedBefore time.Time) (int64, error)
	clearExpiredResetTokens func(ctx context.Context, sentBefore time.Time) (int64, error)
}

func (r *fakeUserRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	return r.create(ctx, u)
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findByID(ctx, id)
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findByEmail(ctx, email)
}

func (r *fakeUserRepo) FindByToken(ctx context.Context, kind domain.TokenKind, tokenHash string) (*domain.User, error) {
	return r.findByToken(ctx, kind, tokenHash)
}

func (r *fakeUserRepo) Update(ctx context.Context, u *domain.User) error {
	if r.update == nil {
		return nil
	}
	return r.update(ctx, u)
}

func (r *fakeUserRepo) SetToken(ctx context.Context, userID string, kind domain.TokenKind, tokenHash string, sentAt time.Time) error {
	if r.setToken == nil {
		return nil
	}
	return r.setToken(ctx, userID, kind, tokenHash, sentAt)
}

// forbidFullWrites fails the test if a flow writes the whole user row or the
// lock state. Request flows must store their token and nothing else.
func (r *fakeUserRepo) forbidFullWrites(t *testing.T) {
	r.update = func(context.Context, *domain.User) error {
		t.Error("full user row written")
		return nil
	}
	r.updateLockState = func(context.Context, string, domain.LockState) error {
		t.Error("lock state written")
		return nil
	}
}

func (r *fakeUserRepo) UpdateLockState(ctx context.Context, userID string, state domain.LockState) error {
	if r.updateLockState == nil {
		return nil
	}
	return r.updateLockState(ctx, userID, state)
}

func (r *fakeUserRepo) RecordSignIn(ctx context.Context, userID string, at time.Time, ip string) error {
	if r.recordSignIn == nil {
		return nil
	}
	return r.recordSignIn(ctx, userID, at, ip)
}

func (r *fakeUserRepo) Delete(ctx context.Context, userID string) error {
	return r.delete(ctx, userID)
}

func (r *fakeUserRepo) UnlockExpired(ctx context.Context, lockedBefore time.Time) (int64, error) {
	return r.unlockExpired(ctx, lockedBefore)
}

func (r *fakeUserRepo) ClearExpiredResetTokens(ctx context.Context, sentBefore time.Time) (int64, error) {
	return r.clearExpiredResetTokens(ctx, sentBefore)
}

type fakeSessionRepo struct {
	create           func(ctx context.Context, s *domain.Session, maxSessions int) (*domain.Session, int64, error)
	findActive       func(ctx context.Context, userID, tokenHash string, now time.Time) (*domain.Session, error)
	touch            func(ctx context.Context, sessionID string, at time.Time) error
	listForUser      func(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error)
	delete           func(ctx context.Context, userID, sessionID string) error
	deleteAllForUser func(ctx context.Context, userID, exceptID string) (int64, error)
	deleteExpired    func(ctx context.Context, now time.Time) (int64, error)
}

func (r *fakeSessionRepo) Create(ctx context.Context, s *domain.Session, maxSessions int) (*domain.Session, int64, error) {
	if r.create == nil {
		created := *s
		created.ID = "session-new"
		created.LastUsedAt = s.CreatedAt
		return &created, 0, nil
	}
	return r.create(ctx, s, maxSessions)
}

func (r *fakeSessionRepo) FindActive(ctx context.Context, userID, tokenHash string, now time.Time) (*domain.Session, error) {
	return r.findActive(ctx, userID, tokenHash, now)
}

func (r *fakeSessionRepo) Touch(ctx context.Context, sessionID string, at time.Time) error {
	if r.touch == nil {
		return nil
	}
	return r.touch(ctx, sessionID, at)
}

func (r *fakeSessionRepo) ListForUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	return r.listForUser(ctx, userID, now)
}

func (r *fakeSessionRepo) Delete(ctx context.Context, userID, sessionID string) error {
	return r.delete(ctx, userID, sessionID)
}

func (r *fakeSessionRepo) DeleteAllForUser(ctx context.Context, userID, exceptID string) (int64, error) {
	if r.deleteAllForUser == nil {
		return 0, nil
	}
	return r.deleteAllForUser(ctx, userID, exceptID)
}

func (r *fakeSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.deleteExpired(ctx, now)
}

// fakeHasher stores passwords as "hashed:<pw>" so tests stay fast.
type fakeHasher struct {
	dummyCalls int
}

func (h *fakeHasher) Hash(pw string) (string, error) { return "hashed:" + pw, nil }

func (h *fakeHasher) Compare(hash, pw string) error {
	if hash != "hashed:"+pw {
		return password.ErrMismatch
	}
	return nil
}

func (h *fakeHasher) CompareDummy(string) { h.dummyCalls++ }

type sentMail struct {
	kind, to, token string
}

type fakeNotifier struct {
	sent []sentMail
	err  error
}

func (n *fakeNotifier) record(kind, to, token string) error {
	n.sent = append(n.sent, sentMail{kind: kind, to: to, token: token})
	return n.err
}

func (n *fakeNotifier) ConfirmationInstructions(_ context.Context, to, _, raw string) error {
	return n.record("confirmation", to, raw)
}

func (n *fakeNotifier) ResetPasswordInstructions(_ context.Context, to, _, raw string, _ time.Duration) error {
	return n.record("reset_password", to, raw)
}

func (n *fakeNotifier) UnlockInstructions(_ context.Context, to, _, raw string) error {
	return n.record("unlock", to, raw)
}

func (n *fakeNotifier) InvitationInstructions(_ context.Context, to, _, _, raw string, _ time.Duration) error {
	return n.record("invitation", to, raw)
}

func (n *fakeNotifier) PasswordChanged(_ context.Context, to, _ string) error {
	return n.record("password_changed", to, "")
}

func (n *fakeNotifier) last(kind string) (sentMail, bool) {
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind {
			return n.sent[i], true
		}
	}
	return sentMail{}, false
}

// ---- helpers ----

const testJWTKey = "test-jwt-secret-at-least-32-chars!!"

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testPolicy() usecase.Policy {
	return usecase.Policy{
		Lockout: domain.LockoutPolicy{
			MaxAttempts: 3,
			Window:      time.Hour,
			UnlockAfter: time.Hour,
			Strategy:    domain.UnlockByBoth,
		},
		MaxSessions:         5,
		RequireConfirmation: true,
		ConfirmationGrace:   0,
		ConfirmWithin:       72 * time.Hour,
		ResetPasswordWithin: 6 * time.Hour,
		InviteFor:           7 * 24 * time.Hour,
	}
}

type harness struct {
	users    *fakeUserRepo
	sessions *fakeSessionRepo
	hasher   *fakeHasher
	mailer   *fakeNotifier
	codec    *token.Codec
	now      time.Time
}

func newHarness() *harness {
	h := &harness{
		users:    &fakeUserRepo{},
		sessions: &fakeSessionRepo{},
		hasher:   &fakeHasher{},
		mailer:   &fakeNotifier{},
		now:      testNow,
	}
	h.codec = token.NewCodec([]byte(testJWTKey), "sessionauth-test", time.Hour, token.WithClock(func() time.Time { return h.now }))
	return h
}

func (h *harness) auth(p usecase.Policy) *usecase.AuthUsecase {
	return usecase.NewAuthUsecase(h.users, h.sessions, h.hasher, h.codec, h.mailer, p, slog.Default()).
		WithClock(func() time.Time { return h.now })
}

func sha(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func ptr[T any](v T) *T { return &v }

func confirmedUser() *domain.User {
	confirmed := testNow.Add(-24 * time.Hour)
	return &domain.User{
		ID:           "user-1",
		Email:        "ann@example.com",
		Name:         "Ann",
		PasswordHash: "hashed:correct horse",
		ConfirmedAt:  &confirmed,
		CreatedAt:    testNow.Add(-48 * time.Hour),
	}
}

func byEmail(u *domain.User) func(context.Context, string) (*domain.User, error) {
	return func(_ context.Context, email string) (*domain.User, error) {
		if u == nil || !strings.EqualFold(email, u.Email) {
			return nil, domain.ErrUserNotFound
		}
		return u, nil
	}
}
