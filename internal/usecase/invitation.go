package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	"github.com/ErlanBelekov/sessionauth/internal/metrics"
)

type InviteInput struct {
	Email string
	Name  string
}

// Invite creates a placeholder account for email and mails an invitation. An
// invitee who has not accepted yet gets a fresh token instead.
func (u *AuthUsecase) Invite(ctx context.Context, p *domain.Principal, in InviteInput) (*domain.User, error) {
	errs := domain.ValidationErrors{}
	addr := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	validateEmail(errs, addr)
	validateName(errs, name)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	raw, tokenHash, err := u.newToken()
	if err != nil {
		return nil, err
	}
	now := u.now()

	invitee, err := u.users.FindByEmail(ctx, addr)
	switch {
	case err == nil:
		if !invitee.InvitationPending() {
			return nil, domain.ValidationErrors{"email": {"has already been taken"}}
		}
		if err := u.reinvite(ctx, invitee, name, tokenHash, now); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrUserNotFound):
		invitee, err = u.createInvitee(ctx, addr, name, p.User.ID, tokenHash)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("find user: %w", err)
	}

	inviter := p.User.Name
	if inviter == "" {
		inviter = p.User.Email
	}
	if err := u.mailer.InvitationInstructions(ctx, invitee.Email, invitee.Name, inviter, raw, u.policy.InviteFor); err != nil {
		return nil, err
	}
	u.logger.InfoContext(ctx, "user invited", "user_id", invitee.ID, "invited_by", p.User.ID)
	return invitee, nil
}

func (u *AuthUsecase) reinvite(ctx context.Context, invitee *domain.User, name, tokenHash string, now time.Time) error {
	invitee.InvitationTokenHash = &tokenHash
	invitee.InvitationSentAt = &now
	if name == "" || name == invitee.Name {
		if err := u.users.SetToken(ctx, invitee.ID, domain.TokenInvitation, tokenHash, now); err != nil {
			return fmt.Errorf("store invitation token: %w", err)
		}
		return nil
	}

	invitee.Name = name
	if err := u.users.Update(ctx, invitee); err != nil {
		return fmt.Errorf("update invitation: %w", err)
	}
	return nil
}

func (u *AuthUsecase) createInvitee(ctx context.Context, addr, name, inviterID, tokenHash string) (*domain.User, error) {
	// Nobody knows this password; the invitee sets a real one on acceptance.
	placeholder, _, err := u.newToken()
	if err != nil {
		return nil, err
	}
	hash, err := u.hasher.Hash(placeholder)
	if err != nil {
		return nil, err
	}

	now := u.now()
	created, err := u.users.Create(ctx, &domain.User{
		Email:               addr,
		Name:                name,
		PasswordHash:        hash,
		InvitationTokenHash: &tokenHash,
		InvitationSentAt:    &now,
		InvitedBy:           &inviterID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ValidationErrors{"email": {"has already been taken"}}
		}
		return nil, fmt.Errorf("create invitee: %w", err)
	}
	return created, nil
}

type AcceptInvitationInput struct {
	Token                string
	Password             string
	PasswordConfirmation string
	Name                 *string
}

// AcceptInvitation sets the invitee's password, confirms the address the
// invitation was sent to and signs the invitee in.
func (u *AuthUsecase) AcceptInvitation(ctx context.Context, in AcceptInvitationInput, meta domain.SignInMeta) (*SignInResult, error) {
	user, err := u.findByToken(ctx, domain.TokenInvitation, in.Token)
	if err != nil {
		return nil, err
	}

	now := u.now()
	if u.policy.InviteFor > 0 && user.InvitationSentAt != nil && !now.Before(user.InvitationSentAt.Add(u.policy.InviteFor)) {
		return nil, domain.ErrTokenExpired
	}

	errs := domain.ValidationErrors{}
	validatePassword(errs, in.Password, in.PasswordConfirmation)
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		validateName(errs, name)
		user.Name = name
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	user.InvitationTokenHash = nil
	user.InvitationAcceptedAt = &now
	if user.ConfirmedAt == nil {
		user.ConfirmedAt = &now
	}
	if err := u.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}

	if err := u.users.RecordSignIn(ctx, user.ID, now, meta.IP); err != nil {
		return nil, fmt.Errorf("record sign in: %w", err)
	}
	result, err := u.startSession(ctx, user, meta, now)
	if err != nil {
		return nil, err
	}
	metrics.SignInsTotal.WithLabelValues("invitation_accepted").Inc()
	u.logger.InfoContext(ctx, "invitation accepted", "user_id", user.ID, "session_id", result.Session.ID)
	return result, nil
}
