package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/castingly/castingly-backend/api/responses"
	"github.com/castingly/castingly-backend/pkg/auth"
	pkgerrors "github.com/castingly/castingly-backend/pkg/errors"
	"github.com/castingly/castingly-backend/pkg/logger"
)

// PrincipalResolver turns a bearer credential into a principal.
type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) (*auth.Principal, error)
}

// Auth requires a bearer credential accepted by the legacy JWT scheme or
// Dailey Core and seeds the request context with the principal.
func Auth(resolver PrincipalResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(resolver, logg, true)
}

// OptionalAuth resolves a bearer credential when one is present. Requests
// without one continue anonymously.
func OptionalAuth(resolver PrincipalResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(resolver, logg, false)
}

func authenticate(resolver PrincipalResolver, logg *logger.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				if required {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			principal, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, resolveError(err))
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			ctx = logg.WithUserID(ctx, principal.UserID)
			ctx = logg.WithActorRole(ctx, principal.Role.String())
			ctx = logg.WithField(ctx, "auth_source", string(principal.Source))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveError(err error) error {
	if errors.Is(err, auth.ErrUnauthenticated) {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate credentials")
}

// BearerToken extracts the credential from the Authorization header.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
