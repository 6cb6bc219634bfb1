package middleware

import (
	"context"

	"github.com/castingly/castingly-backend/pkg/auth"
)

type contextKey string

const (
	ctxPrincipal  contextKey = "principal"
	ctxStorageKey contextKey = "storage_api_key"
)

// PrincipalFromContext returns the authenticated caller, or nil.
func PrincipalFromContext(ctx context.Context) *auth.Principal {
	if ctx == nil {
		return nil
	}
	if p, ok := ctx.Value(ctxPrincipal).(*auth.Principal); ok {
		return p
	}
	return nil
}

// WithPrincipal injects the authenticated caller into the context.
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPrincipal, p)
}

func UserIDFromContext(ctx context.Context) string {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.UserID
	}
	return ""
}

// StorageKeyFromContext returns a caller-supplied media API key accepted by
// the admin guard, or "".
func StorageKeyFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxStorageKey).(string); ok {
		return v
	}
	return ""
}

// WithStorageKey records the API key an admin call authenticated with.
func WithStorageKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxStorageKey, key)
}
