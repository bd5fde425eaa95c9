package auth

import (
	"context"
	"strings"
)

type ctxKey string

const (
	principalIDKey ctxKey = "auth_principal_id"
	identityKey    ctxKey = "auth_identity"
	kindKey        ctxKey = "auth_kind"
)

// ContextWithSubject stores the authenticated principal's identity in the
// context.
func ContextWithSubject(ctx context.Context, principalID, identity string) context.Context {
	ctx = context.WithValue(ctx, principalIDKey, strings.TrimSpace(principalID))
	return context.WithValue(ctx, identityKey, NormalizeIdentity(identity))
}

// ContextWithKind records the principal kind once it has been resolved.
func ContextWithKind(ctx context.Context, kind Kind) context.Context {
	return context.WithValue(ctx, kindKey, kind)
}

// SubjectFromContext extracts the authenticated principal ID from context.
func SubjectFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(principalIDKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// IdentityFromContext returns the authenticated identity string, if any.
func IdentityFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(identityKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// KindFromContext returns the authenticated principal kind, if any.
func KindFromContext(ctx context.Context) (Kind, bool) {
	v, ok := ctx.Value(kindKey).(Kind)
	if !ok || !v.Valid() {
		return "", false
	}
	return v, true
}
