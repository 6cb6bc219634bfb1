package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/castingly/castingly-backend/api/responses"
	"github.com/castingly/castingly-backend/pkg/config"
	"github.com/castingly/castingly-backend/pkg/dmapi"
	pkgerrors "github.com/castingly/castingly-backend/pkg/errors"
	"github.com/castingly/castingly-backend/pkg/logger"
)

// AdminSecretHeader carries the shared operator secret.
const AdminSecretHeader = "X-Admin-Secret"

// APIKeyVerifier confirms a media API key with its issuer.
type APIKeyVerifier interface {
	Verify(ctx context.Context, key string) error
}

// AdminGuard admits a request carrying the configured admin secret, a bearer
// principal with the admin role, or a bearer media API key that keys accepts.
// An admitted key is kept in the context as the run's storage credential.
// With a nil keys, media API keys are refused.
func AdminGuard(secret string, resolver PrincipalResolver, keys APIKeyVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if provided := r.Header.Get(AdminSecretHeader); secret != "" && provided != "" {
				if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) == 1 {
					if logg != nil {
						ctx = logg.WithField(ctx, "admin_via", "secret")
					}
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			token := BearerToken(r)
			if strings.HasPrefix(token, config.DMAPIKeyPrefix) {
				if keys == nil {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "api keys are not accepted here"))
					return
				}
				if err := keys.Verify(ctx, token); err != nil {
					if errors.Is(err, dmapi.ErrInvalidKey) {
						responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required"))
						return
					}
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify api key"))
					return
				}
				ctx = WithStorageKey(ctx, token)
				if logg != nil {
					ctx = logg.WithField(ctx, "admin_via", "api_key")
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if token != "" && resolver != nil {
				principal, err := resolver.Resolve(ctx, token)
				if err == nil && principal.IsAdmin() {
					ctx = WithPrincipal(ctx, principal)
					if logg != nil {
						ctx = logg.WithFields(ctx, map[string]any{
							"admin_via": "principal",
							"user_id":   principal.UserID,
						})
					}
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required"))
		})
	}
}
