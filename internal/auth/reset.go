package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ResetTokenTTL is the validity window of a password-reset token.
const ResetTokenTTL = 15 * time.Minute

// 20 random bytes give the 160 bits of entropy a reset token must carry.
const resetTokenBytes = 20

// NewResetToken returns a fresh raw reset token as a URL-safe hex string.
// The raw value is delivered to the user out-of-band and never stored.
func NewResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashResetToken computes the one-way hash under which a raw reset token is
// persisted.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
