package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"gurukul.org/internal/auth"
	"gurukul.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/register",
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/v1/auth/forgot-password",
	"/v1/auth/reset-password",
	"/v1/payments/callback",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := a.auth.Authenticate(token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				obs.ObserveTokenVerification("access", "expired")
				writeError(w, r, http.StatusUnauthorized, "token expired")
			case errors.Is(err, auth.ErrTokenInvalid):
				obs.ObserveTokenVerification("access", "invalid")
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}
		obs.ObserveTokenVerification("access", "ok")

		ctx := auth.ContextWithSubject(r.Context(), claims.Subject, claims.Identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin loads the calling principal and checks its kind. The token
// does not carry the kind claim, so this costs one store lookup.
func (a *API) requireAdmin(r *http.Request) (*auth.Principal, error) {
	id, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		return nil, auth.ErrAuthenticationFailed
	}
	p, err := a.auth.Principal(r.Context(), id)
	if err != nil {
		// A valid token for a principal that no longer exists is an
		// authorization failure, not a server fault.
		if errors.Is(err, auth.ErrNotFound) {
			return nil, auth.ErrAuthenticationFailed
		}
		return nil, err
	}
	if p.Kind != auth.KindAdmin {
		return nil, auth.ErrAuthenticationFailed
	}
	return p, nil
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
