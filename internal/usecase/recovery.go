package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	"github.com/ErlanBelekov/sessionauth/internal/metrics"
)

// findForRequest looks up the user behind an instructions request. In paranoid
// mode an unknown address yields (nil, nil) so callers answer as if it existed.
func (u *AuthUsecase) findForRequest(ctx context.Context, emailAddr string) (*domain.User, error) {
	user, err := u.users.FindByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			if u.policy.Paranoid {
				return nil, nil
			}
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// RequestPasswordReset mails a reset link. Requesting again replaces the
// previous token.
func (u *AuthUsecase) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	user, err := u.findForRequest(ctx, emailAddr)
	if err != nil || user == nil {
		return err
	}

	raw, hash, err := u.newToken()
	if err != nil {
		return err
	}
	if err := u.users.SetToken(ctx, user.ID, domain.TokenResetPassword, hash, u.now()); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := u.mailer.ResetPasswordInstructions(ctx, user.Email, user.Name, raw, u.policy.ResetPasswordWithin); err != nil {
		return err
	}
	u.logger.InfoContext(ctx, "password reset requested", "user_id", user.ID)
	return nil
}

type ResetPasswordInput struct {
	Token                string
	Password             string
	PasswordConfirmation string
}

// ResetPassword sets a new password from a mailed token and ends every session
// of the user.
func (u *AuthUsecase) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	user, err := u.findByToken(ctx, domain.TokenResetPassword, in.Token)
	if err != nil {
		return err
	}

	now := u.now()
	if user.ResetPasswordSentAt == nil || !now.Before(user.ResetPasswordSentAt.Add(u.policy.ResetPasswordWithin)) {
		return domain.ErrTokenExpired
	}

	errs := domain.ValidationErrors{}
	validatePassword(errs, in.Password, in.PasswordConfirmation)
	if err := errs.Err(); err != nil {
		return err
	}

	hash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.ResetPasswordTokenHash = nil
	user.ResetPasswordSentAt = nil

	if err := u.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	// The reset link proves mailbox ownership like an unlock link does. With a
	// time-only strategy the lock state is left alone.
	if u.policy.Lockout.Strategy.UsesEmail() {
		wasLocked := user.LockedAt != nil
		u.policy.Lockout.Reset(user)
		if err := u.users.UpdateLockState(ctx, user.ID, user.LockState()); err != nil {
			return fmt.Errorf("unlock: %w", err)
		}
		if wasLocked {
			metrics.UnlocksTotal.WithLabelValues("password_reset").Inc()
		}
	}

	u.revokeAll(ctx, user.ID, "", "password_reset")
	if err := u.mailer.PasswordChanged(ctx, user.Email, user.Name); err != nil {
		u.logger.ErrorContext(ctx, "send password changed notice", "user_id", user.ID, "error", err)
	}
	u.logger.InfoContext(ctx, "password reset", "user_id", user.ID)
	return nil
}

// findByToken resolves a raw mailed token to its user.
func (u *AuthUsecase) findByToken(ctx context.Context, kind domain.TokenKind, raw string) (*domain.User, error) {
	if raw == "" {
		return nil, domain.ErrTokenNotFound
	}
	user, err := u.users.FindByToken(ctx, kind, hashToken(raw))
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("find %s token: %w", kind, err)
	}
	return user, nil
}
