package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
)

type SessionRepository interface {
	// Create inserts s and, in the same transaction, deletes the user's oldest
	// sessions so that at most maxSessions remain. It returns how many were evicted.
	Create(ctx context.Context, s *domain.Session, maxSessions int) (*domain.Session, int64, error)
	FindActive(ctx context.Context, userID, tokenHash string, now time.Time) (*domain.Session, error)
	Touch(ctx context.Context, sessionID string, at time.Time) error
	ListForUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error)
	Delete(ctx context.Context, userID, sessionID string) error
	// DeleteAllForUser removes every session of the user except exceptID (may be empty).
	DeleteAllForUser(ctx context.Context, userID, exceptID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
