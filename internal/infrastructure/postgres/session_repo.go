package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, user_id, token_hash, user_agent, ip, created_at, last_used_at, expires_at`

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create inserts the session and trims the user's session set to maxSessions in one
// transaction. The user row is locked first so concurrent sign-ins for the
// same user serialize on the trim.
func (r *SessionRepository) Create(ctx context.Context, s *domain.Session, maxSessions int) (*domain.Session, int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, s.UserID); err != nil {
		return nil, 0, fmt.Errorf("lock user: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO sessions (user_id, token_hash, user_agent, ip, created_at, last_used_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $5, $6)
		RETURNING `+sessionColumns,
		s.UserID, s.TokenHash, s.UserAgent, s.IP, s.CreatedAt, s.ExpiresAt,
	)
	created, err := scanSession(row)
	if err != nil {
		return nil, 0, err
	}

	var evicted int64
	if maxSessions > 0 {
		tag, execErr := tx.Exec(ctx, `
			DELETE FROM sessions
			WHERE id IN (
				SELECT id FROM sessions
				WHERE user_id = $1
				ORDER BY created_at DESC, id DESC
				OFFSET $2
			)`,
			s.UserID, maxSessions,
		)
		if execErr != nil {
			err = fmt.Errorf("evict sessions: %w", execErr)
			return nil, 0, err
		}
		evicted = tag.RowsAffected()
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("commit tx: %w", err)
	}
	return created, evicted, nil
}

func (r *SessionRepository) FindActive(ctx context.Context, userID, tokenHash string, now time.Time) (*domain.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1 AND token_hash = $2 AND expires_at > $3`,
		userID, tokenHash, now,
	)
	return scanSession(row)
}

func (r *SessionRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET last_used_at = $2 WHERE id = $1`, sessionID, at)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (r *SessionRepository) ListForUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY created_at DESC, id DESC`,
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) Delete(ctx context.Context, userID, sessionID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1 AND user_id = $2`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID, exceptID string) (int64, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if exceptID == "" {
		tag, err = r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	} else {
		tag, err = r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1 AND id <> $2`, userID, exceptID)
	}
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.UserAgent, &s.IP, &s.CreatedAt, &s.LastUsedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &s, nil
}
