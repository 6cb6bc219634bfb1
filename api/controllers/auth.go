package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/castingly/castingly-backend/api/middleware"
	"github.com/castingly/castingly-backend/api/responses"
	"github.com/castingly/castingly-backend/api/validators"
	"github.com/castingly/castingly-backend/pkg/auth"
	"github.com/castingly/castingly-backend/pkg/dailey"
	"github.com/castingly/castingly-backend/pkg/enums"
	pkgerrors "github.com/castingly/castingly-backend/pkg/errors"
	"github.com/castingly/castingly-backend/pkg/logger"
)

// SessionRefresher exchanges a provider refresh token for a new session.
type SessionRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*dailey.Session, error)
}

// PrincipalInvalidator drops a cached principal.
type PrincipalInvalidator interface {
	Invalidate(ctx context.Context, token string) error
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type sessionUser struct {
	ID    string     `json:"id"`
	Email string     `json:"email,omitempty"`
	Name  string     `json:"name,omitempty"`
	Role  enums.Role `json:"role"`
}

type refreshResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         sessionUser `json:"user"`
}

// AuthSession handles GET /api/auth/session.
func AuthSession(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.PrincipalFromContext(r.Context())
		if principal == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		responses.WriteSuccess(w, principal)
	}
}

// AuthRefresh handles POST /api/auth/refresh by exchanging a Dailey Core
// refresh token for a new pair.
func AuthRefresh(refresher SessionRefresher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if refresher == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identity provider unavailable"))
			return
		}
		var payload refreshRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := refresher.Refresh(r.Context(), payload.RefreshToken)
		if err != nil {
			if errors.Is(err, dailey.ErrInvalidToken) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid refresh token"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh session"))
			return
		}

		responses.WriteSuccess(w, refreshResponse{
			AccessToken:  session.AccessToken,
			RefreshToken: session.RefreshToken,
			ExpiresAt:    session.ExpiresAt,
			User: sessionUser{
				ID:    session.User.ID,
				Email: session.User.Email,
				Name:  session.User.Name,
				Role:  auth.MapProviderRoles(session.Roles),
			},
		})
	}
}

// AuthLogout handles POST /api/auth/logout by dropping the cached principal
// of the presented token.
func AuthLogout(cache PrincipalInvalidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := middleware.BearerToken(r)
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		if cache != nil {
			if err := cache.Invalidate(r.Context(), token); err != nil && logg != nil {
				logg.WarnErr(r.Context(), "principal cache invalidate failed", err)
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}
