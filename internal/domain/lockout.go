package domain

import "time"

type UnlockStrategy string

const (
	UnlockByTime  UnlockStrategy = "time"
	UnlockByEmail UnlockStrategy = "email"
	UnlockByBoth  UnlockStrategy = "both"
	UnlockByNone  UnlockStrategy = "none"
)

func (s UnlockStrategy) UsesTime() bool {
	return s == UnlockByTime || s == UnlockByBoth
}

func (s UnlockStrategy) UsesEmail() bool {
	return s == UnlockByEmail || s == UnlockByBoth
}

// LockoutPolicy drives the failed-attempt state machine kept on the user record:
//
//	Unlocked(n) --failure--> Unlocked(n+1) --n+1 == MaxAttempts--> Locked
//	Locked --UnlockAfter elapsed | unlock token | admin--> Unlocked(0)
//
// A successful sign-in resets the counter. Failures older than Window no longer
// count toward the threshold.
type LockoutPolicy struct {
	MaxAttempts int // 0 disables locking
	Window      time.Duration
	UnlockAfter time.Duration
	Strategy    UnlockStrategy
}

func (p LockoutPolicy) Enabled() bool {
	return p.MaxAttempts > 0
}

// IsLocked reports whether u must be refused at time now.
func (p LockoutPolicy) IsLocked(u *User, now time.Time) bool {
	if u.LockedAt == nil {
		return false
	}
	return !p.LockExpired(u, now)
}

// LockExpired reports whether u carries a lock that time-based unlocking has released.
func (p LockoutPolicy) LockExpired(u *User, now time.Time) bool {
	if u.LockedAt == nil || !p.Strategy.UsesTime() {
		return false
	}
	return !now.Before(u.LockedAt.Add(p.UnlockAfter))
}

// UnlocksAt returns when a time lock on u lifts, or nil if it will not lift by itself.
func (p LockoutPolicy) UnlocksAt(u *User) *time.Time {
	if u.LockedAt == nil || !p.Strategy.UsesTime() {
		return nil
	}
	t := u.LockedAt.Add(p.UnlockAfter)
	return &t
}

// RegisterFailure records one failed attempt and reports whether it locked the account.
func (p LockoutPolicy) RegisterFailure(u *User, now time.Time) bool {
	if !p.Enabled() || u.LockedAt != nil {
		return false
	}

	if u.FirstFailedAt == nil || (p.Window > 0 && now.Sub(*u.FirstFailedAt) >= p.Window) {
		u.FailedAttempts = 0
		start := now
		u.FirstFailedAt = &start
	}

	u.FailedAttempts++
	if u.FailedAttempts >= p.MaxAttempts {
		p.Lock(u, now)
		return true
	}
	return false
}

// AttemptsRemaining is the number of failures u can still make before locking.
func (p LockoutPolicy) AttemptsRemaining(u *User) int {
	if !p.Enabled() || u.LockedAt != nil {
		return 0
	}
	return max(p.MaxAttempts-u.FailedAttempts, 0)
}

func (p LockoutPolicy) Lock(u *User, now time.Time) {
	at := now
	u.LockedAt = &at
}

// Reset returns u to Unlocked(0) and drops any outstanding unlock token.
func (p LockoutPolicy) Reset(u *User) {
	u.FailedAttempts = 0
	u.FirstFailedAt = nil
	u.LockedAt = nil
	u.UnlockTokenHash = nil
}
