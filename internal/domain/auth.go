package domain

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrTokenInvalid       = errors.New("token is invalid or expired")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is locked")
	ErrUnconfirmed        = errors.New("email address is not confirmed")
	ErrInvitationPending  = errors.New("invitation has not been accepted")
	ErrTokenNotFound      = errors.New("token not found")
	ErrTokenExpired       = errors.New("token has expired")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUnlockNotAllowed   = errors.New("unlock by email is not enabled")
	ErrEmailTaken         = errors.New("email has already been taken")
)

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string

	ConfirmationTokenHash *string
	ConfirmationSentAt    *time.Time
	ConfirmedAt           *time.Time
	UnconfirmedEmail      *string

	ResetPasswordTokenHash *string
	ResetPasswordSentAt    *time.Time

	FailedAttempts  int
	FirstFailedAt   *time.Time
	LockedAt        *time.Time
	UnlockTokenHash *string

	InvitationTokenHash  *string
	InvitationSentAt     *time.Time
	InvitationAcceptedAt *time.Time
	InvitedBy            *string

	SignInCount     int
	CurrentSignInAt *time.Time
	LastSignInAt    *time.Time
	CurrentSignInIP *string
	LastSignInIP    *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) Confirmed() bool {
	return u.ConfirmedAt != nil
}

// InvitationPending reports whether the user was invited and has not yet set a password.
func (u *User) InvitationPending() bool {
	return u.InvitationTokenHash != nil && u.InvitationAcceptedAt == nil
}

// LockState is the subset of User written back after every authentication attempt.
type LockState struct {
	FailedAttempts  int
	FirstFailedAt   *time.Time
	LockedAt        *time.Time
	UnlockTokenHash *string
}

func (u *User) LockState() LockState {
	return LockState{
		FailedAttempts:  u.FailedAttempts,
		FirstFailedAt:   u.FirstFailedAt,
		LockedAt:        u.LockedAt,
		UnlockTokenHash: u.UnlockTokenHash,
	}
}

// SignInMeta describes the client a session is being created for.
type SignInMeta struct {
	IP        string
	UserAgent string
}
