package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenClass separates short-lived access tokens from long-lived refresh
// tokens. Each class is signed with its own secret, so compromising one
// secret cannot forge the other class.
type TokenClass string

const (
	TokenAccess  TokenClass = "access"
	TokenRefresh TokenClass = "refresh"
)

// Claims is the signed payload carried by both token classes.
type Claims struct {
	Identity string `json:"identity"`
	Class    string `json:"token_class"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies access and refresh tokens. It keeps no state
// beyond its configuration; refresh token persistence is the caller's job.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// IssuerConfig carries the startup configuration for an Issuer.
type IssuerConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	Issuer        string
}

// IssuerOption configures Issuer behavior.
type IssuerOption func(*Issuer)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer validates the configuration and constructs an Issuer. The two
// secrets must be non-empty and distinct.
func NewIssuer(cfg IssuerConfig, opts ...IssuerOption) (*Issuer, error) {
	access := strings.TrimSpace(cfg.AccessSecret)
	refresh := strings.TrimSpace(cfg.RefreshSecret)
	if access == "" || refresh == "" {
		return nil, errors.New("auth: token secrets are required")
	}
	if access == refresh {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("auth: token TTLs must be greater than zero")
	}
	iss := &Issuer{
		accessSecret:  []byte(access),
		refreshSecret: []byte(refresh),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        strings.TrimSpace(cfg.Issuer),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(iss)
	}
	return iss, nil
}

// IssueAccess signs a short-lived access token for the principal.
func (i *Issuer) IssueAccess(principalID, identity string) (string, time.Time, error) {
	return i.issue(principalID, identity, TokenAccess)
}

// IssueRefresh signs a long-lived refresh token for the principal.
func (i *Issuer) IssueRefresh(principalID, identity string) (string, time.Time, error) {
	return i.issue(principalID, identity, TokenRefresh)
}

func (i *Issuer) issue(principalID, identity string, class TokenClass) (string, time.Time, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return "", time.Time{}, errors.New("auth: principal id is required")
	}

	now := i.now().UTC()
	exp := now.Add(i.ttl(class))
	claims := Claims{
		Identity: identity,
		Class:    string(class),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret(class))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", class, err)
	}
	return signed, exp, nil
}

// Verify checks signature integrity and expiry against the given class.
// Expired tokens fail with ErrTokenExpired; everything else that goes wrong
// (bad signature, wrong class, malformed structure) fails with
// ErrTokenInvalid.
func (i *Issuer) Verify(token string, class TokenClass) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenInvalid
		}
		return i.secret(class), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time { return i.now().UTC() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Class != string(class) {
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenInvalid
	}
	if i.issuer != "" && claims.Issuer != i.issuer {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (i *Issuer) secret(class TokenClass) []byte {
	if class == TokenRefresh {
		return i.refreshSecret
	}
	return i.accessSecret
}

func (i *Issuer) ttl(class TokenClass) time.Duration {
	if class == TokenRefresh {
		return i.refreshTTL
	}
	return i.accessTTL
}
