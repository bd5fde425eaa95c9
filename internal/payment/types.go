package payment

import (
	"errors"
	"time"
)

// Order is the gateway's record of an intended charge. The gateway is the
// source of truth for order existence; nothing is persisted locally at
// order-creation time.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"` // minor units, no floats
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// Payment is the integrity record persisted after a gateway callback passes
// signature verification. Immutable once created.
type Payment struct {
	ID               string    `json:"id"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	Signature        string    `json:"signature"`
	CourseID         string    `json:"course_id"`
	StudentID        string    `json:"student_id"`
	CreatedAt        time.Time `json:"created_at"`
}

var (
	ErrUpstream         = errors.New("payment: gateway unavailable")
	ErrSignatureInvalid = errors.New("payment: signature verification failed")
	ErrDuplicatePayment = errors.New("payment: callback already recorded")
	ErrInvalidAmount    = errors.New("payment: invalid amount (must be > 0)")
	ErrNotFound         = errors.New("payment: not found")
)
