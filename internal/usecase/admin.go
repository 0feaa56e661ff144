package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	"github.com/ErlanBelekov/sessionauth/internal/metrics"
)

// Operator actions used by authctl. Unlike the request endpoints they always
// report unknown addresses.

func (u *AuthUsecase) findForAdmin(ctx context.Context, emailAddr string) (*domain.User, error) {
	user, err := u.users.FindByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// LockAccount locks the user and ends their sessions. With an email unlock
// strategy the user is mailed unlock instructions.
func (u *AuthUsecase) LockAccount(ctx context.Context, emailAddr string) error {
	user, err := u.findForAdmin(ctx, emailAddr)
	if err != nil {
		return err
	}

	now := u.now()
	lock := u.policy.Lockout
	lock.Lock(user, now)

	var raw string
	if lock.Strategy.UsesEmail() {
		var hash string
		raw, hash, err = u.newToken()
		if err != nil {
			return err
		}
		user.UnlockTokenHash = &hash
	}
	if err := u.users.UpdateLockState(ctx, user.ID, user.LockState()); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	metrics.LockoutsTotal.Inc()
	u.revokeAll(ctx, user.ID, "", "locked")

	if raw != "" {
		if err := u.mailer.UnlockInstructions(ctx, user.Email, user.Name, raw); err != nil {
			u.logger.ErrorContext(ctx, "send unlock instructions", "user_id", user.ID, "error", err)
		}
	}
	u.logger.InfoContext(ctx, "account locked by operator", "user_id", user.ID)
	return nil
}

func (u *AuthUsecase) UnlockAccount(ctx context.Context, emailAddr string) error {
	user, err := u.findForAdmin(ctx, emailAddr)
	if err != nil {
		return err
	}
	if user.LockedAt == nil && user.FailedAttempts == 0 {
		return nil
	}

	u.policy.Lockout.Reset(user)
	if err := u.users.UpdateLockState(ctx, user.ID, user.LockState()); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	metrics.UnlocksTotal.WithLabelValues("admin").Inc()
	u.logger.InfoContext(ctx, "account unlocked", "user_id", user.ID, "via", "admin")
	return nil
}

// RevokeAllSessions signs the user out everywhere and returns how many
// sessions were removed.
func (u *AuthUsecase) RevokeAllSessions(ctx context.Context, emailAddr string) (int64, error) {
	user, err := u.findForAdmin(ctx, emailAddr)
	if err != nil {
		return 0, err
	}
	n, err := u.sessions.DeleteAllForUser(ctx, user.ID, "")
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	metrics.SessionsRevokedTotal.WithLabelValues("admin").Add(float64(n))
	return n, nil
}

// EnsureUser makes emailAddr a confirmed account that signs in with pass. A
// new user is created when the address is free; an existing one gets the new
// password, a settled invitation and a cleared lock.
func (u *AuthUsecase) EnsureUser(ctx context.Context, emailAddr, pass, name string) (*domain.User, error) {
	errs := domain.ValidationErrors{}
	addr := normalizeEmail(emailAddr)
	name = strings.TrimSpace(name)
	validateEmail(errs, addr)
	validatePassword(errs, pass, "")
	validateName(errs, name)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := u.hasher.Hash(pass)
	if err != nil {
		return nil, err
	}
	now := u.now()

	user, err := u.users.FindByEmail(ctx, addr)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		created, err := u.users.Create(ctx, &domain.User{
			Email:        addr,
			Name:         name,
			PasswordHash: hash,
			ConfirmedAt:  &now,
		})
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		u.logger.InfoContext(ctx, "user created by operator", "user_id", created.ID)
		return created, nil
	case err != nil:
		return nil, fmt.Errorf("find user: %w", err)
	}

	user.PasswordHash = hash
	if name != "" {
		user.Name = name
	}
	if user.ConfirmedAt == nil {
		user.ConfirmedAt = &now
	}
	if user.InvitationPending() {
		user.InvitationTokenHash = nil
		user.InvitationAcceptedAt = &now
	}
	user.ResetPasswordTokenHash = nil
	user.ResetPasswordSentAt = nil
	if err := u.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	u.policy.Lockout.Reset(user)
	if err := u.users.UpdateLockState(ctx, user.ID, user.LockState()); err != nil {
		return nil, fmt.Errorf("unlock: %w", err)
	}
	u.logger.InfoContext(ctx, "user refreshed by operator", "user_id", user.ID)
	return user, nil
}
