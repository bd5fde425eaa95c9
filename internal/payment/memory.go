package payment

import (
	"context"
	"sync"
)

var _ Store = (*InMemory)(nil)

// InMemory implements Store for tests and local development. The single
// lock makes insert-if-absent atomic, matching the database's uniqueness
// constraint.
type InMemory struct {
	mu   sync.Mutex
	byID map[string]*Payment
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[string]*Payment)}
}

func gatewayKey(orderID, paymentID string) string {
	return orderID + "|" + paymentID
}

func (s *InMemory) InsertIfAbsent(ctx context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := gatewayKey(p.GatewayOrderID, p.GatewayPaymentID)
	if _, ok := s.byID[key]; ok {
		return ErrDuplicatePayment
	}
	cp := *p
	s.byID[key] = &cp
	return nil
}

func (s *InMemory) FindByGatewayIDs(ctx context.Context, orderID, paymentID string) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[gatewayKey(orderID, paymentID)]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}
