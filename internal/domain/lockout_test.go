package domain_test

import (
	"testing"
	"time"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func policy(strategy domain.UnlockStrategy) domain.LockoutPolicy {
	return domain.LockoutPolicy{
		MaxAttempts: 3,
		Window:      10 * time.Minute,
		UnlockAfter: time.Hour,
		Strategy:    strategy,
	}
}

func TestRegisterFailure_LocksAtThreshold(t *testing.T) {
	p := policy(domain.UnlockByBoth)
	u := &domain.User{}

	if p.RegisterFailure(u, t0) || p.RegisterFailure(u, t0.Add(time.Second)) {
		t.Fatal("locked before the threshold")
	}
	if got := p.AttemptsRemaining(u); got != 1 {
		t.Fatalf("attempts remaining = %d, want 1", got)
	}

	if !p.RegisterFailure(u, t0.Add(2*time.Second)) {
		t.Fatal("expected the third failure to lock")
	}
	if u.LockedAt == nil || !u.LockedAt.Equal(t0.Add(2*time.Second)) {
		t.Fatalf("locked_at = %v", u.LockedAt)
	}
	if u.FailedAttempts != 3 {
		t.Errorf("failed attempts = %d, want 3", u.FailedAttempts)
	}
	if !p.IsLocked(u, t0.Add(3*time.Second)) {
		t.Error("expected user to be locked")
	}
}

func TestRegisterFailure_AlreadyLockedIsNoop(t *testing.T) {
	p := policy(domain.UnlockByEmail)
	locked := t0
	u := &domain.User{FailedAttempts: 3, LockedAt: &locked}

	if p.RegisterFailure(u, t0.Add(time.Minute)) {
		t.Error("relocking an already locked user")
	}
	if u.FailedAttempts != 3 || !u.LockedAt.Equal(t0) {
		t.Errorf("state changed: attempts = %d, locked_at = %v", u.FailedAttempts, u.LockedAt)
	}
}

func TestRegisterFailure_WindowElapsedRestartsCount(t *testing.T) {
	p := policy(domain.UnlockByTime)
	u := &domain.User{}

	p.RegisterFailure(u, t0)
	p.RegisterFailure(u, t0.Add(time.Minute))
	if u.FailedAttempts != 2 {
		t.Fatalf("failed attempts = %d, want 2", u.FailedAttempts)
	}

	// Exactly one window after the first failure the count starts over.
	if p.RegisterFailure(u, t0.Add(10*time.Minute)) {
		t.Fatal("locked after the window elapsed")
	}
	if u.FailedAttempts != 1 || !u.FirstFailedAt.Equal(t0.Add(10*time.Minute)) {
		t.Errorf("attempts = %d, first failed at = %v", u.FailedAttempts, u.FirstFailedAt)
	}
}

func TestRegisterFailure_ZeroWindowNeverForgets(t *testing.T) {
	p := policy(domain.UnlockByTime)
	p.Window = 0
	u := &domain.User{}

	p.RegisterFailure(u, t0)
	p.RegisterFailure(u, t0.Add(24*time.Hour))
	if !p.RegisterFailure(u, t0.Add(48*time.Hour)) {
		t.Error("expected lock with no window")
	}
}

func TestRegisterFailure_DisabledPolicy(t *testing.T) {
	p := domain.LockoutPolicy{}
	u := &domain.User{}

	for i := 0; i < 100; i++ {
		if p.RegisterFailure(u, t0) {
			t.Fatal("disabled policy locked the user")
		}
	}
	if u.LockedAt != nil || u.FailedAttempts != 0 {
		t.Errorf("state = %+v", u.LockState())
	}
}

func TestIsLocked_TimeStrategyBoundary(t *testing.T) {
	p := policy(domain.UnlockByTime)
	locked := t0
	u := &domain.User{LockedAt: &locked}

	if !p.IsLocked(u, t0.Add(time.Hour-time.Nanosecond)) {
		t.Error("unlocked before UnlockAfter")
	}
	if p.IsLocked(u, t0.Add(time.Hour)) {
		t.Error("still locked at UnlockAfter")
	}
	if !p.LockExpired(u, t0.Add(time.Hour)) {
		t.Error("lock not reported as expired")
	}
	if at := p.UnlocksAt(u); at == nil || !at.Equal(t0.Add(time.Hour)) {
		t.Errorf("unlocks at = %v", at)
	}
}

func TestIsLocked_EmailStrategyNeverExpires(t *testing.T) {
	p := policy(domain.UnlockByEmail)
	locked := t0
	u := &domain.User{LockedAt: &locked}
	later := t0.Add(365 * 24 * time.Hour)

	if !p.IsLocked(u, later) || p.LockExpired(u, later) {
		t.Error("email-only lock expired on its own")
	}
	if at := p.UnlocksAt(u); at != nil {
		t.Errorf("unlocks at = %v, want nil", at)
	}
}

func TestIsLocked_Unlocked(t *testing.T) {
	p := policy(domain.UnlockByBoth)
	if p.IsLocked(&domain.User{FailedAttempts: 2}, t0) {
		t.Error("user below the threshold reported locked")
	}
}

func TestReset_ClearsEverything(t *testing.T) {
	p := policy(domain.UnlockByBoth)
	at := t0
	hash := "abc"
	u := &domain.User{FailedAttempts: 3, FirstFailedAt: &at, LockedAt: &at, UnlockTokenHash: &hash}

	p.Reset(u)

	if u.FailedAttempts != 0 || u.FirstFailedAt != nil || u.LockedAt != nil || u.UnlockTokenHash != nil {
		t.Errorf("state after reset = %+v", u.LockState())
	}
	if got := p.AttemptsRemaining(u); got != 3 {
		t.Errorf("attempts remaining = %d, want 3", got)
	}
}

func TestUnlockStrategy(t *testing.T) {
	cases := []struct {
		s           domain.UnlockStrategy
		time, email bool
	}{
		{domain.UnlockByTime, true, false},
		{domain.UnlockByEmail, false, true},
		{domain.UnlockByBoth, true, true},
		{domain.UnlockByNone, false, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.s), func(t *testing.T) {
			if tc.s.UsesTime() != tc.time || tc.s.UsesEmail() != tc.email {
				t.Errorf("UsesTime = %v, UsesEmail = %v", tc.s.UsesTime(), tc.s.UsesEmail())
			}
		})
	}
}

func TestValidationErrors(t *testing.T) {
	v := domain.ValidationErrors{}
	if err := v.Err(); err != nil {
		t.Fatalf("empty errors: %v", err)
	}

	v.Add("password", "is too short (minimum is 8 characters)")
	v.Add("email", "is invalid")
	v.Add("email", "has already been taken")

	err := v.Err()
	if err == nil {
		t.Fatal("expected an error")
	}
	if !v.Has("email") {
		t.Error("email field missing")
	}
	want := "validation failed: email is invalid; email has already been taken; password is too short (minimum is 8 characters)"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}
