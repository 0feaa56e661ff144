package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	"github.com/ErlanBelekov/sessionauth/internal/password"
)

type SignUpInput struct {
	Email                string
	Password             string
	PasswordConfirmation string
	Name                 string
}

// SignUp registers a new user and mails confirmation instructions.
func (u *AuthUsecase) SignUp(ctx context.Context, in SignUpInput) (*domain.User, error) {
	errs := domain.ValidationErrors{}
	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	validateEmail(errs, email)
	validatePassword(errs, in.Password, in.PasswordConfirmation)
	validateName(errs, name)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	raw, tokenHash, err := u.newToken()
	if err != nil {
		return nil, err
	}

	now := u.now()
	created, err := u.users.Create(ctx, &domain.User{
		Email:                 email,
		Name:                  name,
		PasswordHash:          hash,
		ConfirmationTokenHash: &tokenHash,
		ConfirmationSentAt:    &now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ValidationErrors{"email": {"has already been taken"}}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := u.mailer.ConfirmationInstructions(ctx, created.Email, created.Name, raw); err != nil {
		// The account exists; the user can ask for the instructions again.
		u.logger.ErrorContext(ctx, "send confirmation instructions", "user_id", created.ID, "error", err)
	}
	u.logger.InfoContext(ctx, "user registered", "user_id", created.ID)
	return created, nil
}

func (u *AuthUsecase) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// UpdateProfileInput carries optional changes; nil fields are left alone.
type UpdateProfileInput struct {
	Name                 *string
	Email                *string
	Password             *string
	PasswordConfirmation string
	CurrentPassword      string
}

// UpdateProfile applies name, email and password changes. Email and password
// changes require the current password. A new email is held as unconfirmed
// until the link mailed to it is followed. A password change ends every other
// session of the user.
func (u *AuthUsecase) UpdateProfile(ctx context.Context, p *domain.Principal, in UpdateProfileInput) (*domain.User, error) {
	user := *p.User
	errs := domain.ValidationErrors{}

	var newEmail string
	if in.Email != nil {
		newEmail = normalizeEmail(*in.Email)
		if newEmail == user.Email {
			newEmail = ""
		}
	}

	if newEmail != "" || in.Password != nil {
		if err := u.checkCurrentPassword(errs, user.PasswordHash, in.CurrentPassword); err != nil {
			return nil, err
		}
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		validateName(errs, name)
		user.Name = name
	}

	if newEmail != "" {
		validateEmail(errs, newEmail)
		if !errs.Has("email") {
			existing, err := u.users.FindByEmail(ctx, newEmail)
			switch {
			case err == nil && existing.ID != user.ID:
				errs.Add("email", "has already been taken")
			case err != nil && !errors.Is(err, domain.ErrUserNotFound):
				return nil, fmt.Errorf("find user: %w", err)
			}
		}
	}

	if in.Password != nil {
		validatePassword(errs, *in.Password, in.PasswordConfirmation)
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}

	var rawConfirmation string
	if newEmail != "" {
		raw, hash, err := u.newToken()
		if err != nil {
			return nil, err
		}
		now := u.now()
		rawConfirmation = raw
		user.UnconfirmedEmail = &newEmail
		user.ConfirmationTokenHash = &hash
		user.ConfirmationSentAt = &now
	}

	if in.Password != nil {
		hash, err := u.hasher.Hash(*in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
		user.ResetPasswordTokenHash = nil
		user.ResetPasswordSentAt = nil
	}

	if err := u.users.Update(ctx, &user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ValidationErrors{"email": {"has already been taken"}}
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	if rawConfirmation != "" {
		if err := u.mailer.ConfirmationInstructions(ctx, newEmail, user.Name, rawConfirmation); err != nil {
			u.logger.ErrorContext(ctx, "send reconfirmation instructions", "user_id", user.ID, "error", err)
		}
	}
	if in.Password != nil {
		u.revokeAll(ctx, user.ID, p.Session.ID, "password_changed")
		if err := u.mailer.PasswordChanged(ctx, user.Email, user.Name); err != nil {
			u.logger.ErrorContext(ctx, "send password changed notice", "user_id", user.ID, "error", err)
		}
	}

	return &user, nil
}

// DeleteAccount removes the caller's account; sessions go with it.
func (u *AuthUsecase) DeleteAccount(ctx context.Context, p *domain.Principal, currentPassword string) error {
	errs := domain.ValidationErrors{}
	if err := u.checkCurrentPassword(errs, p.User.PasswordHash, currentPassword); err != nil {
		return err
	}
	if err := errs.Err(); err != nil {
		return err
	}

	if err := u.users.Delete(ctx, p.User.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	u.logger.InfoContext(ctx, "account deleted", "user_id", p.User.ID)
	return nil
}

// checkCurrentPassword records a field error for a blank or wrong password and
// returns only infrastructure errors.
func (u *AuthUsecase) checkCurrentPassword(errs domain.ValidationErrors, hash, current string) error {
	if current == "" {
		errs.Add("current_password", "can't be blank")
		return nil
	}
	if err := u.hasher.Compare(hash, current); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			errs.Add("current_password", "is invalid")
			return nil
		}
		return fmt.Errorf("compare password: %w", err)
	}
	return nil
}
