package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"gurukul.org/internal/audit"
	"gurukul.org/internal/obs"
	"gurukul.org/internal/payment"
	"gurukul.org/internal/stream"
)

type createPaymentOrderRequest struct {
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
}

type paymentCallbackRequest struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
	CourseID         string `json:"course_id"`
	StudentID        string `json:"student_id"`
}

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req createPaymentOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	order, err := a.payments.CreateOrder(r.Context(), req.Amount, req.Currency)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrInvalidAmount):
			writeError(w, r, http.StatusBadRequest, "amount must be > 0")
		case errors.Is(err, payment.ErrUpstream):
			writeError(w, r, http.StatusBadGateway, "payment gateway unavailable")
		default:
			writeError(w, r, http.StatusInternalServerError, "order creation failed")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "payment.order.created", map[string]any{
		"order_id": order.ID,
		"amount":   order.Amount,
		"currency": order.Currency,
	})
	writeJSON(w, http.StatusCreated, order)
}

// handleCallback takes the gateway's completion callback. It is public:
// authenticity comes from the HMAC signature, not a bearer token.
func (a *API) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req paymentCallbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.GatewayOrderID) == "" || strings.TrimSpace(req.GatewayPaymentID) == "" {
		writeError(w, r, http.StatusBadRequest, "gateway_order_id and gateway_payment_id are required")
		return
	}

	p, err := a.payments.VerifyAndRecord(r.Context(),
		req.GatewayOrderID, req.GatewayPaymentID, req.Signature, req.CourseID, req.StudentID)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrSignatureInvalid):
			obs.ObservePaymentVerification("signature_invalid")
			_ = audit.LogEvent(r.Context(), "payment.callback.rejected", map[string]any{
				"gateway_order_id": req.GatewayOrderID,
			})
			writeError(w, r, http.StatusBadRequest, "signature verification failed")
		case errors.Is(err, payment.ErrDuplicatePayment):
			obs.ObservePaymentVerification("duplicate")
			writeError(w, r, http.StatusConflict, "payment already recorded")
		default:
			obs.ObservePaymentVerification("error")
			writeError(w, r, http.StatusInternalServerError, "payment verification failed")
		}
		return
	}

	obs.ObservePaymentVerification("ok")
	_ = audit.LogEvent(r.Context(), "payment.verified", map[string]any{
		"payment_id":         p.ID,
		"gateway_order_id":   p.GatewayOrderID,
		"gateway_payment_id": p.GatewayPaymentID,
		"course_id":          p.CourseID,
	})
	a.publish(stream.NewEvent("payment.verified", p.ID, map[string]string{
		"gateway_order_id": p.GatewayOrderID,
		"course_id":        p.CourseID,
	}))
	writeJSON(w, http.StatusCreated, p)
}
