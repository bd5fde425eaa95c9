package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"gurukul.org/internal/ids"
)

// Store persists verified payments. InsertIfAbsent must be atomic with the
// uniqueness check on (gateway order id, gateway payment id): callbacks are
// delivered at least once, possibly concurrently.
type Store interface {
	InsertIfAbsent(ctx context.Context, p *Payment) error
	FindByGatewayIDs(ctx context.Context, orderID, paymentID string) (*Payment, error)
}

// Signature computes the gateway completion signature: a lowercase hex
// HMAC-SHA256 digest over "orderID|paymentID" keyed by the shared secret.
func Signature(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verifier requests orders from the gateway and verifies completion
// callbacks before a Payment record is allowed to exist.
type Verifier struct {
	gateway Gateway
	store   Store
	secret  string
	now     func() time.Time
}

// VerifierOption configures Verifier behavior.
type VerifierOption func(*Verifier)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if fn != nil {
			v.now = fn
		}
	}
}

// NewVerifier wires the payment integrity flow together.
func NewVerifier(gateway Gateway, store Store, sharedSecret string, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		gateway: gateway,
		store:   store,
		secret:  sharedSecret,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// CreateOrder delegates to the gateway with a fresh receipt reference.
// Remote failure creates no local record.
func (v *Verifier) CreateOrder(ctx context.Context, amount int64, currency string) (Order, error) {
	if amount <= 0 {
		return Order{}, ErrInvalidAmount
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "INR"
	}
	receipt := "rcpt_" + uuid.NewString()
	return v.gateway.CreateOrder(ctx, amount, currency, receipt)
}

// VerifySignature checks a callback signature in constant time.
func (v *Verifier) VerifySignature(orderID, paymentID, signature string) error {
	expected := Signature(orderID, paymentID, v.secret)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureInvalid
	}
	return nil
}

// VerifyAndRecord validates a gateway callback and persists the Payment.
// Nothing is written on signature mismatch. Re-delivered callbacks hit the
// store's uniqueness guarantee and fail with ErrDuplicatePayment, so a
// verified callback is never recorded twice.
func (v *Verifier) VerifyAndRecord(ctx context.Context, orderID, paymentID, signature, courseID, studentID string) (*Payment, error) {
	if err := v.VerifySignature(orderID, paymentID, signature); err != nil {
		return nil, err
	}
	p := &Payment{
		ID:               ids.New(),
		GatewayOrderID:   orderID,
		GatewayPaymentID: paymentID,
		Signature:        signature,
		CourseID:         courseID,
		StudentID:        studentID,
		CreatedAt:        v.now().UTC(),
	}
	if err := v.store.InsertIfAbsent(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
