package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// newToken returns a random hex token for the client and the SHA-256 digest
// that gets persisted in its place.
func (u *AuthUsecase) newToken() (raw, hash string, err error) {
	b := make([]byte, 32)
	if _, err = io.ReadFull(u.random, b); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	raw = hex.EncodeToString(b)
	return raw, hashToken(raw), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
