// Package token signs and verifies the session JWTs handed to clients.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a session token. SessionID carries the raw opaque
// session token; the server only stores its hash.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type Codec struct {
	key    []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

type Option func(*Codec)

// WithLeeway tolerates clock skew when checking exp/iat.
func WithLeeway(d time.Duration) Option {
	return func(c *Codec) { c.leeway = d }
}

// WithClock overrides time.Now, used in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(key []byte, issuer string, ttl time.Duration, opts ...Option) *Codec {
	c := &Codec{
		key:    key,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for userID referencing sessionToken, valid for the codec TTL from now.
func (c *Codec) Issue(userID, sessionToken string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(c.ttl)
	claims := Claims{
		SessionID: sessionToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign jwt: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, algorithm, issuer and expiry. Every rejection is
// reported as domain.ErrTokenInvalid.
func (c *Codec) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.key, nil
	},
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.leeway),
		jwt.WithTimeFunc(c.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	if claims.Subject == "" || claims.SessionID == "" {
		return nil, fmt.Errorf("%w: missing sub or sid", domain.ErrTokenInvalid)
	}
	return claims, nil
}
