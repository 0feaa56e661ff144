package handler

import (
	"time"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
)

type userResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	UnconfirmedEmail *string    `json:"unconfirmed_email,omitempty"`
	ConfirmedAt      *time.Time `json:"confirmed_at"`
	SignInCount      int        `json:"sign_in_count"`
	CurrentSignInAt  *time.Time `json:"current_sign_in_at"`
	LastSignInAt     *time.Time `json:"last_sign_in_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		UnconfirmedEmail: u.UnconfirmedEmail,
		ConfirmedAt:      u.ConfirmedAt,
		SignInCount:      u.SignInCount,
		CurrentSignInAt:  u.CurrentSignInAt,
		LastSignInAt:     u.LastSignInAt,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

type sessionResponse struct {
	ID         string    `json:"id"`
	UserAgent  string    `json:"user_agent"`
	IP         string    `json:"ip"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Current    bool      `json:"current"`
}

type signInResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}
