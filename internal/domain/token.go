package domain

// TokenKind names the one-time tokens mailed to users. Only their SHA-256
// digest is persisted.
type TokenKind string

const (
	TokenConfirmation  TokenKind = "confirmation"
	TokenResetPassword TokenKind = "reset_password"
	TokenUnlock        TokenKind = "unlock"
	TokenInvitation    TokenKind = "invitation"
)
