package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubGateway struct {
	lastAmount   int64
	lastCurrency string
	lastReceipt  string
	order        Order
	err          error
}

func (g *stubGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (Order, error) {
	g.lastAmount = amount
	g.lastCurrency = currency
	g.lastReceipt = receipt
	if g.err != nil {
		return Order{}, g.err
	}
	o := g.order
	o.Amount = amount
	o.Currency = currency
	o.Receipt = receipt
	return o, nil
}

func TestSignatureVector(t *testing.T) {
	// HMAC-SHA256("order_abc|pay_xyz", "shh"), lowercase hex. The constant
	// was computed outside this package; a drift in the delimiter, digest
	// or encoding breaks callback verification against the gateway.
	const want = "9e1c07a8836c90063932dceba15f2b86262751da83d575495b5c4c3d2ce98611"
	got := Signature("order_abc", "pay_xyz", "shh")
	if got != want {
		t.Fatalf("Signature = %s, want %s", got, want)
	}
	if got == Signature("order_abc", "pay_xyz", "other-secret") {
		t.Fatal("different secrets must produce different signatures")
	}
	if got == Signature("order_abc|pay", "xyz", "shh") {
		t.Fatal("delimiter must prevent field-boundary collisions")
	}
}

func TestCreateOrder(t *testing.T) {
	gw := &stubGateway{order: Order{ID: "order_1"}}
	v := NewVerifier(gw, NewInMemory(), "shh")

	order, err := v.CreateOrder(context.Background(), 49900, "inr")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.ID != "order_1" {
		t.Fatalf("unexpected order id: %s", order.ID)
	}
	if gw.lastCurrency != "INR" {
		t.Fatalf("currency not upper-cased: %s", gw.lastCurrency)
	}
	if gw.lastReceipt == "" {
		t.Fatal("expected a generated receipt")
	}

	// Currency defaults when omitted.
	if _, err := v.CreateOrder(context.Background(), 100, ""); err != nil {
		t.Fatalf("CreateOrder default currency: %v", err)
	}
	if gw.lastCurrency != "INR" {
		t.Fatalf("expected INR default, got %s", gw.lastCurrency)
	}

	if _, err := v.CreateOrder(context.Background(), 0, "INR"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := v.CreateOrder(context.Background(), -5, "INR"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative amount: expected ErrInvalidAmount, got %v", err)
	}
}

func TestCreateOrderUpstreamFailure(t *testing.T) {
	gw := &stubGateway{err: ErrUpstream}
	v := NewVerifier(gw, NewInMemory(), "shh")
	if _, err := v.CreateOrder(context.Background(), 100, "INR"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	v := NewVerifier(&stubGateway{}, NewInMemory(), "shh")

	sig := Signature("order_abc", "pay_xyz", "shh")
	if err := v.VerifySignature("order_abc", "pay_xyz", sig); err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}

	// Flip one hex character.
	tampered := []byte(sig)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}
	if err := v.VerifySignature("order_abc", "pay_xyz", string(tampered)); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("tampered signature: expected ErrSignatureInvalid, got %v", err)
	}

	if err := v.VerifySignature("order_abc", "pay_xyz", ""); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("empty signature: expected ErrSignatureInvalid, got %v", err)
	}
	if err := v.VerifySignature("order_other", "pay_xyz", sig); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("signature over other ids: expected ErrSignatureInvalid, got %v", err)
	}
}

func TestVerifyAndRecord(t *testing.T) {
	store := NewInMemory()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := NewVerifier(&stubGateway{}, store, "shh", WithClock(func() time.Time { return now }))

	sig := Signature("order_abc", "pay_xyz", "shh")
	p, err := v.VerifyAndRecord(context.Background(), "order_abc", "pay_xyz", sig, "course-1", "student-1")
	if err != nil {
		t.Fatalf("VerifyAndRecord: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected generated payment id")
	}
	if !p.CreatedAt.Equal(now) {
		t.Fatalf("unexpected created_at: %v", p.CreatedAt)
	}

	found, err := store.FindByGatewayIDs(context.Background(), "order_abc", "pay_xyz")
	if err != nil {
		t.Fatalf("FindByGatewayIDs: %v", err)
	}
	if found.CourseID != "course-1" || found.StudentID != "student-1" {
		t.Fatalf("payment fields not persisted: %+v", found)
	}

	// Redelivered callback: verified again, rejected on insert.
	if _, err := v.VerifyAndRecord(context.Background(), "order_abc", "pay_xyz", sig, "course-1", "student-1"); !errors.Is(err, ErrDuplicatePayment) {
		t.Fatalf("expected ErrDuplicatePayment, got %v", err)
	}
}

func TestVerifyAndRecordConcurrentCallbacks(t *testing.T) {
	store := NewInMemory()
	v := NewVerifier(&stubGateway{}, store, "shh")
	sig := Signature("order_abc", "pay_xyz", "shh")

	// The gateway may deliver the same callback twice in flight. The
	// insert-if-absent keeps exactly one record regardless of interleaving.
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = v.VerifyAndRecord(context.Background(), "order_abc", "pay_xyz", sig, "course-1", "student-1")
		}(i)
	}
	wg.Wait()

	var wins, dups int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrDuplicatePayment):
			dups++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || dups != 1 {
		t.Fatalf("expected one insert and one duplicate, got %d/%d (%v)", wins, dups, errs)
	}
	if _, err := store.FindByGatewayIDs(context.Background(), "order_abc", "pay_xyz"); err != nil {
		t.Fatalf("expected the single record to exist: %v", err)
	}
}

func TestVerifyAndRecordWritesNothingOnBadSignature(t *testing.T) {
	store := NewInMemory()
	v := NewVerifier(&stubGateway{}, store, "shh")

	if _, err := v.VerifyAndRecord(context.Background(), "order_abc", "pay_xyz", "deadbeef", "c", "s"); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
	if _, err := store.FindByGatewayIDs(context.Background(), "order_abc", "pay_xyz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no record, got %v", err)
	}
}
