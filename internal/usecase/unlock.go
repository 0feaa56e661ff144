package usecase

import (
	"context"
	"fmt"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	"github.com/ErlanBelekov/sessionauth/internal/metrics"
)

// RequestUnlock mails a new unlock link to a locked user.
func (u *AuthUsecase) RequestUnlock(ctx context.Context, emailAddr string) error {
	if !u.policy.Lockout.Strategy.UsesEmail() {
		return domain.ErrUnlockNotAllowed
	}

	user, err := u.findForRequest(ctx, emailAddr)
	if err != nil || user == nil {
		return err
	}

	if !u.policy.Lockout.IsLocked(user, u.now()) {
		if u.policy.Paranoid {
			return nil
		}
		return domain.ValidationErrors{"email": {"was not locked"}}
	}

	raw, hash, err := u.newToken()
	if err != nil {
		return err
	}
	user.UnlockTokenHash = &hash
	if err := u.users.UpdateLockState(ctx, user.ID, user.LockState()); err != nil {
		return fmt.Errorf("store unlock token: %w", err)
	}
	return u.mailer.UnlockInstructions(ctx, user.Email, user.Name, raw)
}

// Unlock lifts a lock using the token from the unlock email.
func (u *AuthUsecase) Unlock(ctx context.Context, rawToken string) error {
	if !u.policy.Lockout.Strategy.UsesEmail() {
		return domain.ErrUnlockNotAllowed
	}

	user, err := u.findByToken(ctx, domain.TokenUnlock, rawToken)
	if err != nil {
		return err
	}

	u.policy.Lockout.Reset(user)
	if err := u.users.UpdateLockState(ctx, user.ID, user.LockState()); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	metrics.UnlocksTotal.WithLabelValues("email").Inc()
	u.logger.InfoContext(ctx, "account unlocked", "user_id", user.ID, "via", "email")
	return nil
}
