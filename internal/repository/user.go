package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByToken(ctx context.Context, kind domain.TokenKind, tokenHash string) (*domain.User, error)

	// Update writes every mutable column of u except the lock state.
	Update(ctx context.Context, u *domain.User) error
	// SetToken replaces one mailed token digest and its send time. Unlock
	// tokens go through UpdateLockState instead.
	SetToken(ctx context.Context, userID string, kind domain.TokenKind, tokenHash string, sentAt time.Time) error
	UpdateLockState(ctx context.Context, userID string, state domain.LockState) error
	// RecordSignIn rotates the sign-in tracking columns and clears the failed-attempt counter.
	RecordSignIn(ctx context.Context, userID string, at time.Time, ip string) error
	Delete(ctx context.Context, userID string) error

	// Sweeper
	UnlockExpired(ctx context.Context, lockedBefore time.Time) (int64, error)
	ClearExpiredResetTokens(ctx context.Context, sentBefore time.Time) (int64, error)
}
