package auth

import (
	"context"
	"sync"
	"time"

	"gurukul.org/internal/ids"
)

var _ PrincipalStore = (*InMemory)(nil)

// InMemory implements PrincipalStore with in-process concurrency safety.
// Conditional updates run under one lock, mirroring the single-row
// atomicity the PostgreSQL store gets from its WHERE clauses. Intended for
// tests and local development.
type InMemory struct {
	mu         sync.Mutex
	byID       map[string]*Principal
	byIdentity map[string]string // kind/identity -> id
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:       make(map[string]*Principal),
		byIdentity: make(map[string]string),
	}
}

func identityKeyOf(kind Kind, identity string) string {
	return string(kind) + "/" + NormalizeIdentity(identity)
}

func (s *InMemory) Create(ctx context.Context, p *Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identityKeyOf(p.Kind, p.Identity)
	if _, ok := s.byIdentity[key]; ok {
		return ErrAlreadyExists
	}
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.ApprovalStatus == "" && p.Kind != KindAdmin {
		p.ApprovalStatus = ApprovalPending
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	cp := *p
	s.byID[p.ID] = &cp
	s.byIdentity[key] = p.ID
	return nil
}

func (s *InMemory) Find(ctx context.Context, id string) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyOut(id)
}

func (s *InMemory) FindByIdentity(ctx context.Context, kind Kind, identity string) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byIdentity[identityKeyOf(kind, identity)]
	if !ok {
		return nil, ErrNotFound
	}
	return s.copyOut(id)
}

func (s *InMemory) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.PasswordHash = passwordHash
	p.RefreshToken = ""
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) SetRefreshToken(ctx context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.RefreshToken = token
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) RotateRefreshToken(ctx context.Context, id, current, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || p.RefreshToken == "" || p.RefreshToken != current {
		return ErrTokenInvalid
	}
	p.RefreshToken = next
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.ResetTokenHash = tokenHash
	exp := expiresAt
	p.ResetTokenExpiresAt = &exp
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) ConsumeResetToken(ctx context.Context, id, tokenHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || p.ResetTokenHash == "" || p.ResetTokenHash != tokenHash {
		return ErrResetTokenNotFound
	}
	if p.ResetTokenExpiresAt == nil || !p.ResetTokenExpiresAt.After(now) {
		return ErrResetTokenExpired
	}
	p.ResetTokenHash = ""
	p.ResetTokenExpiresAt = nil
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) SetApprovalStatus(ctx context.Context, id string, status ApprovalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.ApprovalStatus = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) TransitionApproval(ctx context.Context, id string, from, to ApprovalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || p.ApprovalStatus != from {
		return ErrResubmitNotAllowed
	}
	p.ApprovalStatus = to
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// copyOut returns a copy so callers never alias stored state.
func (s *InMemory) copyOut(id string) (*Principal, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	if p.ResetTokenExpiresAt != nil {
		t := *p.ResetTokenExpiresAt
		out.ResetTokenExpiresAt = &t
	}
	return &out, nil
}
