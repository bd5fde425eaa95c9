package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPGatewayCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key-id" || pass != "key-secret" {
			t.Fatalf("missing or wrong basic auth: %q/%q", user, pass)
		}
		var req struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
			Receipt  string `json:"receipt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Amount != 49900 || req.Currency != "INR" || req.Receipt != "rcpt_1" {
			t.Fatalf("unexpected payload: %+v", req)
		}
		writeBody(w, http.StatusOK, Order{
			ID:       "order_created",
			Amount:   req.Amount,
			Currency: req.Currency,
			Receipt:  req.Receipt,
		})
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, "key-id", "key-secret")
	order, err := gw.CreateOrder(context.Background(), 49900, "INR", "rcpt_1")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.ID != "order_created" {
		t.Fatalf("unexpected order id: %s", order.ID)
	}
}

func TestHTTPGatewayUpstreamErrors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"auth rejected", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
		{"missing order id", func(w http.ResponseWriter, r *http.Request) {
			writeBody(w, http.StatusOK, Order{})
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			gw := NewHTTPGateway(srv.URL, "k", "s")
			if _, err := gw.CreateOrder(context.Background(), 100, "INR", "rcpt"); !errors.Is(err, ErrUpstream) {
				t.Fatalf("expected ErrUpstream, got %v", err)
			}
		})
	}
}

func TestHTTPGatewayTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	gw := NewHTTPGateway(srv.URL, "k", "s")
	if _, err := gw.CreateOrder(context.Background(), 100, "INR", "rcpt"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func writeBody(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
