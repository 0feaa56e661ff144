package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
)

const alreadyConfirmed = "was already confirmed, please try signing in"

// Confirm marks the address behind a confirmation token as verified. For an
// email change the pending address becomes the user's email.
func (u *AuthUsecase) Confirm(ctx context.Context, rawToken string) (*domain.User, error) {
	user, err := u.findByToken(ctx, domain.TokenConfirmation, rawToken)
	if err != nil {
		return nil, err
	}

	if user.Confirmed() && user.UnconfirmedEmail == nil {
		return nil, domain.ValidationErrors{"email": {alreadyConfirmed}}
	}

	now := u.now()
	if u.confirmationExpired(user, now) {
		return nil, domain.ErrTokenExpired
	}

	if user.ConfirmedAt == nil {
		user.ConfirmedAt = &now
	}
	if user.UnconfirmedEmail != nil {
		user.Email = *user.UnconfirmedEmail
		user.UnconfirmedEmail = nil
	}
	user.ConfirmationTokenHash = nil

	if err := u.users.Update(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ValidationErrors{"email": {"has already been taken"}}
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	u.logger.InfoContext(ctx, "email confirmed", "user_id", user.ID)
	return user, nil
}

func (u *AuthUsecase) confirmationExpired(user *domain.User, now time.Time) bool {
	if u.policy.ConfirmWithin <= 0 || user.ConfirmationSentAt == nil {
		return false
	}
	return !now.Before(user.ConfirmationSentAt.Add(u.policy.ConfirmWithin))
}

// ResendConfirmation mails a fresh confirmation link, to the pending address
// when an email change is in progress.
func (u *AuthUsecase) ResendConfirmation(ctx context.Context, emailAddr string) error {
	user, err := u.findForRequest(ctx, emailAddr)
	if err != nil || user == nil {
		return err
	}

	if user.Confirmed() && user.UnconfirmedEmail == nil {
		if u.policy.Paranoid {
			return nil
		}
		return domain.ValidationErrors{"email": {alreadyConfirmed}}
	}

	raw, hash, err := u.newToken()
	if err != nil {
		return err
	}
	if err := u.users.SetToken(ctx, user.ID, domain.TokenConfirmation, hash, u.now()); err != nil {
		return fmt.Errorf("store confirmation token: %w", err)
	}

	to := user.Email
	if user.UnconfirmedEmail != nil {
		to = *user.UnconfirmedEmail
	}
	return u.mailer.ConfirmationInstructions(ctx, to, user.Name, raw)
}
