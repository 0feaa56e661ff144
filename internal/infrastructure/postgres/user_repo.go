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

const userColumns = `
	id, email, name, password_hash,
	confirmation_token_hash, confirmation_sent_at, confirmed_at, unconfirmed_email,
	reset_password_token_hash, reset_password_sent_at,
	failed_attempts, first_failed_at, locked_at, unlock_token_hash,
	invitation_token_hash, invitation_sent_at, invitation_accepted_at, invited_by,
	sign_in_count, current_sign_in_at, last_sign_in_at, current_sign_in_ip, last_sign_in_ip,
	created_at, updated_at`

const uniqueViolation = "23505"

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (
			email, name, password_hash,
			confirmation_token_hash, confirmation_sent_at, confirmed_at,
			invitation_token_hash, invitation_sent_at, invited_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING` + userColumns

	row := r.pool.QueryRow(ctx, query,
		u.Email, u.Name, u.PasswordHash,
		u.ConfirmationTokenHash, u.ConfirmationSentAt, u.ConfirmedAt,
		u.InvitationTokenHash, u.InvitationSentAt, u.InvitedBy,
	)

	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (r *UserRepository) FindByToken(ctx context.Context, kind domain.TokenKind, tokenHash string) (*domain.User, error) {
	column, err := tokenColumn(kind)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE `+column+` = $1`, tokenHash)
	u, err := scanUser(row)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrTokenNotFound
	}
	return u, err
}

// Update writes the profile, confirmation, recovery and invitation columns.
// Lock columns are left to UpdateLockState so a stale read cannot undo a lock.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET
			email = $2, name = $3, password_hash = $4,
			confirmation_token_hash = $5, confirmation_sent_at = $6, confirmed_at = $7, unconfirmed_email = $8,
			reset_password_token_hash = $9, reset_password_sent_at = $10,
			invitation_token_hash = $11, invitation_sent_at = $12, invitation_accepted_at = $13,
			updated_at = NOW()
		WHERE id = $1`,
		u.ID, u.Email, u.Name, u.PasswordHash,
		u.ConfirmationTokenHash, u.ConfirmationSentAt, u.ConfirmedAt, u.UnconfirmedEmail,
		u.ResetPasswordTokenHash, u.ResetPasswordSentAt,
		u.InvitationTokenHash, u.InvitationSentAt, u.InvitationAcceptedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// SetToken stores a freshly mailed token digest and its send time, touching no other column.
func (r *UserRepository) SetToken(ctx context.Context, userID string, kind domain.TokenKind, tokenHash string, sentAt time.Time) error {
	column, err := tokenColumn(kind)
	if err != nil {
		return err
	}
	sentColumn, ok := tokenSentColumns[kind]
	if !ok {
		return fmt.Errorf("token kind %q has no send time", kind)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET `+column+` = $2, `+sentColumn+` = $3, updated_at = NOW() WHERE id = $1`,
		userID, tokenHash, sentAt,
	)
	if err != nil {
		return fmt.Errorf("set %s token: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdateLockState(ctx context.Context, userID string, state domain.LockState) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET failed_attempts = $2, first_failed_at = $3, locked_at = $4, unlock_token_hash = $5, updated_at = NOW()
		WHERE id = $1`,
		userID, state.FailedAttempts, state.FirstFailedAt, state.LockedAt, state.UnlockTokenHash,
	)
	if err != nil {
		return fmt.Errorf("update lock state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) RecordSignIn(ctx context.Context, userID string, at time.Time, ip string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET
			sign_in_count      = sign_in_count + 1,
			last_sign_in_at    = COALESCE(current_sign_in_at, $2),
			last_sign_in_ip    = COALESCE(current_sign_in_ip, $3),
			current_sign_in_at = $2,
			current_sign_in_ip = $3,
			failed_attempts    = 0,
			first_failed_at    = NULL,
			updated_at         = NOW()
		WHERE id = $1`,
		userID, at, ip,
	)
	if err != nil {
		return fmt.Errorf("record sign in: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// UnlockExpired lifts time locks set before lockedBefore.
func (r *UserRepository) UnlockExpired(ctx context.Context, lockedBefore time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET locked_at = NULL, failed_attempts = 0, first_failed_at = NULL, unlock_token_hash = NULL, updated_at = NOW()
		WHERE locked_at IS NOT NULL AND locked_at <= $1`,
		lockedBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("unlock expired: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context, sentBefore time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET reset_password_token_hash = NULL, reset_password_sent_at = NULL, updated_at = NOW()
		WHERE reset_password_token_hash IS NOT NULL AND reset_password_sent_at < $1`,
		sentBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("clear expired reset tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

var tokenSentColumns = map[domain.TokenKind]string{
	domain.TokenConfirmation:  "confirmation_sent_at",
	domain.TokenResetPassword: "reset_password_sent_at",
	domain.TokenInvitation:    "invitation_sent_at",
}

func tokenColumn(kind domain.TokenKind) (string, error) {
	switch kind {
	case domain.TokenConfirmation:
		return "confirmation_token_hash", nil
	case domain.TokenResetPassword:
		return "reset_password_token_hash", nil
	case domain.TokenUnlock:
		return "unlock_token_hash", nil
	case domain.TokenInvitation:
		return "invitation_token_hash", nil
	default:
		return "", fmt.Errorf("unknown token kind %q", kind)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash,
		&u.ConfirmationTokenHash, &u.ConfirmationSentAt, &u.ConfirmedAt, &u.UnconfirmedEmail,
		&u.ResetPasswordTokenHash, &u.ResetPasswordSentAt,
		&u.FailedAttempts, &u.FirstFailedAt, &u.LockedAt, &u.UnlockTokenHash,
		&u.InvitationTokenHash, &u.InvitationSentAt, &u.InvitationAcceptedAt, &u.InvitedBy,
		&u.SignInCount, &u.CurrentSignInAt, &u.LastSignInAt, &u.CurrentSignInIP, &u.LastSignInIP,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
