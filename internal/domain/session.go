package domain

import "time"

type Session struct {
	ID         string
	UserID     string
	TokenHash  string
	UserAgent  string
	IP         string
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Principal is the authenticated caller: the user plus the session the
// presented token refers to.
type Principal struct {
	User    *User
	Session *Session
}
