package auth

import (
	"strings"
	"time"
)

// Kind distinguishes the three principal classes. They share one credential
// lifecycle; only their detail records (managed elsewhere) differ.
type Kind string

const (
	KindStudent Kind = "student"
	KindTeacher Kind = "teacher"
	KindAdmin   Kind = "admin"
)

// Valid reports whether k is a known principal kind.
func (k Kind) Valid() bool {
	switch k {
	case KindStudent, KindTeacher, KindAdmin:
		return true
	}
	return false
}

// Principal is an authenticated actor: a student, teacher or admin.
type Principal struct {
	ID           string
	Kind         Kind
	Identity     string
	PasswordHash string

	// ApprovalStatus gates platform access for students and teachers.
	// Admins carry no approval state and are implicitly trusted.
	ApprovalStatus ApprovalStatus

	// RefreshToken holds the most recently issued refresh token; issuing a
	// new one overwrites it. Empty when the principal never logged in.
	RefreshToken string

	// ResetTokenHash and ResetTokenExpiresAt are set together while a
	// password reset is pending and cleared together on consumption. Only
	// the SHA-256 hash of the raw token is ever stored.
	ResetTokenHash      string
	ResetTokenExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeIdentity lower-cases and trims an email or username so lookups
// are case-insensitive.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
