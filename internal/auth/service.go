package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gurukul.org/internal/mail"
)

// TokenPair carries freshly issued access and refresh tokens.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Service drives the credential lifecycle for students, teachers and
// admins. All three kinds share this one implementation; the principal
// record parameterizes the behavior.
type Service struct {
	principals PrincipalStore
	tokens     *Issuer
	mailer     mail.Dispatcher
	resetURL   string
	now        func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithResetURL overrides the base link embedded in reset emails.
func WithResetURL(u string) ServiceOption {
	return func(s *Service) {
		if u != "" {
			s.resetURL = u
		}
	}
}

// NewService wires the credential lifecycle together. The mail dispatcher
// may be nil, in which case reset tokens are generated but not delivered.
func NewService(principals PrincipalStore, tokens *Issuer, mailer mail.Dispatcher, opts ...ServiceOption) *Service {
	s := &Service{
		principals: principals,
		tokens:     tokens,
		mailer:     mailer,
		resetURL:   "https://gurukul.org/reset-password",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a principal. The password is hashed explicitly here,
// before persistence; the store never mutates what it is given.
func (s *Service) Register(ctx context.Context, kind Kind, identity, password string) (*Principal, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown principal kind", ErrInvalidCredentialInput)
	}
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return nil, fmt.Errorf("%w: identity is required", ErrInvalidCredentialInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	p := &Principal{
		Kind:         kind,
		Identity:     identity,
		PasswordHash: hash,
	}
	if err := s.principals.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Login verifies credentials and issues a token pair. The refresh token is
// persisted on the principal, overwriting the previously issued one.
func (s *Service) Login(ctx context.Context, kind Kind, identity, password string) (TokenPair, *Principal, error) {
	p, err := s.principals.FindByIdentity(ctx, kind, identity)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrAuthenticationFailed
		}
		return TokenPair{}, nil, err
	}
	if !VerifyPassword(p.PasswordHash, password) {
		return TokenPair{}, nil, ErrAuthenticationFailed
	}

	pair, err := s.issuePair(p.ID, p.Identity)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if err := s.principals.SetRefreshToken(ctx, p.ID, pair.RefreshToken); err != nil {
		return TokenPair{}, nil, err
	}
	p.RefreshToken = pair.RefreshToken
	return pair, p, nil
}

// Refresh exchanges a valid refresh token for a new pair. The presented
// token must be the most recently issued one; rotation overwrites it, so an
// older token fails with ErrTokenInvalid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	pair, err := s.issuePair(claims.Subject, claims.Identity)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.principals.RotateRefreshToken(ctx, claims.Subject, refreshToken, pair.RefreshToken); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Authenticate verifies an access token and returns its claims.
func (s *Service) Authenticate(token string) (*Claims, error) {
	return s.tokens.Verify(token, TokenAccess)
}

// ForgotPassword generates a reset token, persists its hash with a
// 15-minute expiry, and mails the raw value to the principal. The token is
// committed before the mail dispatch; a delivery failure is returned but
// does not roll it back, and no lock is held across the SMTP exchange.
func (s *Service) ForgotPassword(ctx context.Context, kind Kind, identity string) error {
	p, err := s.principals.FindByIdentity(ctx, kind, identity)
	if err != nil {
		return err
	}
	raw, err := NewResetToken()
	if err != nil {
		return err
	}
	expiresAt := s.now().UTC().Add(ResetTokenTTL)
	if err := s.principals.SetResetToken(ctx, p.ID, HashResetToken(raw), expiresAt); err != nil {
		return err
	}

	if s.mailer == nil {
		return nil
	}
	body := fmt.Sprintf(
		`<p>Click the link to reset your password: <a href="%s?token=%s">Reset password</a></p><p>The link expires in 15 minutes.</p>`,
		s.resetURL, raw)
	return s.mailer.Send(ctx, p.Identity, "Password Reset", body)
}

// ResetPassword consumes a pending reset token and installs the new
// password. Validate-and-clear happens as one atomic store operation, so a
// concurrent attempt with the same raw token observes ErrResetTokenNotFound.
func (s *Service) ResetPassword(ctx context.Context, kind Kind, identity, rawToken, newPassword string) error {
	newHash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	p, err := s.principals.FindByIdentity(ctx, kind, identity)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrResetTokenNotFound
		}
		return err
	}
	if err := s.principals.ConsumeResetToken(ctx, p.ID, HashResetToken(rawToken), s.now().UTC()); err != nil {
		return err
	}
	return s.principals.UpdatePassword(ctx, p.ID, newHash)
}

// Resubmit applies the one automatic approval edge: a principal in
// reupload returns to pending after re-submitting documents.
func (s *Service) Resubmit(ctx context.Context, principalID string) error {
	return s.principals.TransitionApproval(ctx, principalID, ApprovalReupload, ApprovalPending)
}

// SetApproval records an administrative approval decision. The subsystem
// does not police which administrative transitions are legal.
func (s *Service) SetApproval(ctx context.Context, principalID string, status ApprovalStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown approval status", ErrInvalidCredentialInput)
	}
	return s.principals.SetApprovalStatus(ctx, principalID, status)
}

// Principal loads a principal by id.
func (s *Service) Principal(ctx context.Context, id string) (*Principal, error) {
	return s.principals.Find(ctx, id)
}

func (s *Service) issuePair(principalID, identity string) (TokenPair, error) {
	access, accessExp, err := s.tokens.IssueAccess(principalID, identity)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(principalID, identity)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}
