package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("GURUKUL_PG_DSN", "postgres://localhost/gurukul")
	t.Setenv("ACCESS_TOKEN_SECRET", "access-secret")
	t.Setenv("ACCESS_TOKEN_EXPIRY", "15m")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh-secret")
	t.Setenv("REFRESH_TOKEN_EXPIRY", "168h")
	t.Setenv("GATEWAY_KEY_ID", "rzp_test_key")
	t.Setenv("GATEWAY_KEY_SECRET", "rzp_test_secret")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_EMAIL", "noreply@example.com")
	t.Setenv("SMTP_PASS", "smtp-pass")
}

func TestLoadComplete(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SMTP_PORT", "587")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("unexpected addr: %s", cfg.HTTPAddr)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("unexpected access TTL: %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 168*time.Hour {
		t.Fatalf("unexpected refresh TTL: %v", cfg.RefreshTokenTTL)
	}
	if cfg.SMTPPort != 587 {
		t.Fatalf("unexpected smtp port: %d", cfg.SMTPPort)
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected default addr: %s", cfg.HTTPAddr)
	}
	if cfg.JWTIssuer != "gurukul" {
		t.Fatalf("unexpected default issuer: %s", cfg.JWTIssuer)
	}
	if cfg.SMTPPort != 465 {
		t.Fatalf("unexpected default smtp port: %d", cfg.SMTPPort)
	}
	if cfg.GatewayURL == "" {
		t.Fatal("expected default gateway url")
	}
}

func TestLoadReportsAllMissingKeys(t *testing.T) {
	setRequired(t)
	t.Setenv("GURUKUL_PG_DSN", "")
	t.Setenv("SMTP_PASS", "")

	_, err := Load()
	if !errors.Is(err, ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "GURUKUL_PG_DSN") || !strings.Contains(msg, "SMTP_PASS") {
		t.Fatalf("expected all missing keys in one error, got %q", msg)
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCESS_TOKEN_EXPIRY", "soon")

	_, err := Load()
	if !errors.Is(err, ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
	if !strings.Contains(err.Error(), "ACCESS_TOKEN_EXPIRY") {
		t.Fatalf("expected ACCESS_TOKEN_EXPIRY named, got %q", err.Error())
	}
}

func TestLoadRejectsInvalidSMTPPort(t *testing.T) {
	setRequired(t)
	t.Setenv("SMTP_PORT", "four-sixty-five")

	_, err := Load()
	if !errors.Is(err, ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
	if !strings.Contains(err.Error(), "SMTP_PORT") {
		t.Fatalf("expected SMTP_PORT named, got %q", err.Error())
	}

	// Zero and negative ports are configuration mistakes, not defaults.
	t.Setenv("SMTP_PORT", "0")
	if _, err := Load(); !errors.Is(err, ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration for port 0, got %v", err)
	}
}

func TestLoadRejectsEqualSecrets(t *testing.T) {
	setRequired(t)
	t.Setenv("REFRESH_TOKEN_SECRET", "access-secret")

	_, err := Load()
	if !errors.Is(err, ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
	if !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("expected distinct-secret message, got %q", err.Error())
	}
}
