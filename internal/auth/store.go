package auth

import (
	"context"
	"time"
)

// PrincipalStore describes persistence operations required by the credential
// lifecycle. Implementations must make RotateRefreshToken,
// ConsumeResetToken and TransitionApproval atomic conditional updates: the
// check and the write happen as one indivisible step.
type PrincipalStore interface {
	Create(ctx context.Context, p *Principal) error
	Find(ctx context.Context, id string) (*Principal, error)
	FindByIdentity(ctx context.Context, kind Kind, identity string) (*Principal, error)

	// UpdatePassword replaces the credential hash and clears the stored
	// refresh token, ending any open session.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// SetRefreshToken records the most recently issued refresh token,
	// overwriting the previous value.
	SetRefreshToken(ctx context.Context, id, token string) error

	// RotateRefreshToken replaces the stored refresh token only when it
	// still equals current; fails with ErrTokenInvalid otherwise.
	RotateRefreshToken(ctx context.Context, id, current, next string) error

	// SetResetToken persists a reset token hash and expiry, overwriting any
	// prior pending reset.
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error

	// ConsumeResetToken atomically clears the pending reset when tokenHash
	// matches and the expiry is still in the future. Exactly one of two
	// concurrent callers presenting the same token succeeds; the other
	// observes ErrResetTokenNotFound. A matching but stale token fails with
	// ErrResetTokenExpired.
	ConsumeResetToken(ctx context.Context, id, tokenHash string, now time.Time) error

	// SetApprovalStatus writes an administrative approval decision.
	SetApprovalStatus(ctx context.Context, id string, status ApprovalStatus) error

	// TransitionApproval moves approval from one state to another only when
	// the current state matches; fails with ErrResubmitNotAllowed otherwise.
	TransitionApproval(ctx context.Context, id string, from, to ApprovalStatus) error
}
