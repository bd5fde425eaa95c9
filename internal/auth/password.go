package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt reads at most 72 bytes of input; longer passwords are rejected
// rather than silently truncated.
const maxPasswordBytes = 72

const passwordCost = bcrypt.DefaultCost

// HashPassword hashes a plaintext password using bcrypt (cost 10). The salt
// is random, so hashing the same password twice yields different outputs.
func HashPassword(password string) (string, error) {
	if len(password) == 0 || len(password) > maxPasswordBytes {
		return "", ErrInvalidCredentialInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with a stored hash. A
// mismatch returns false, not an error.
func VerifyPassword(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
