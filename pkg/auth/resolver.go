package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/castingly/castingly-backend/pkg/config"
	"github.com/castingly/castingly-backend/pkg/dailey"
	"github.com/castingly/castingly-backend/pkg/logger"
)

// ErrUnauthenticated is returned when no scheme accepts the credential.
var ErrUnauthenticated = errors.New("unauthenticated")

// CoreValidator resolves identity-provider tokens.
type CoreValidator interface {
	ValidateToken(ctx context.Context, token string) (*dailey.Identity, error)
}

// PrincipalCache memoizes resolved provider tokens.
type PrincipalCache interface {
	Get(ctx context.Context, token string) (*Principal, bool, error)
	Put(ctx context.Context, token string, p *Principal) error
}

// Resolver bridges the legacy JWT scheme and Dailey Core.
type Resolver struct {
	jwt   config.JWTConfig
	core  CoreValidator
	cache PrincipalCache
	logg  *logger.Logger
}

// NewResolver builds a resolver. cache may be nil.
func NewResolver(jwtCfg config.JWTConfig, core CoreValidator, cache PrincipalCache, logg *logger.Logger) (*Resolver, error) {
	if core == nil {
		return nil, fmt.Errorf("core validator required")
	}
	return &Resolver{jwt: jwtCfg, core: core, cache: cache, logg: logg}, nil
}

// Resolve authenticates a bearer credential. Legacy JWTs are tried first;
// anything they reject is validated against Dailey Core.
func (r *Resolver) Resolve(ctx context.Context, token string) (*Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}

	if looksLikeJWT(token) && r.jwt.Secret != "" {
		if claims, err := ParseLegacyToken(r.jwt, token); err == nil {
			return &Principal{
				UserID: claims.SubjectID(),
				Email:  claims.Email,
				Role:   MapLegacyRole(claims.Role),
				Source: SourceLegacyJWT,
				Token:  token,
			}, nil
		}
	}

	if r.cache != nil {
		cached, ok, err := r.cache.Get(ctx, token)
		if err != nil && r.logg != nil {
			r.logg.WarnErr(ctx, "principal cache read failed", err)
		}
		if ok {
			cached.Token = token
			return cached, nil
		}
	}

	identity, err := r.core.ValidateToken(ctx, token)
	if err != nil {
		if errors.Is(err, dailey.ErrInvalidToken) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("validate token: %w", err)
	}

	principal := &Principal{
		UserID: identity.User.ID,
		Email:  identity.User.Email,
		Role:   MapProviderRoles(identity.Roles),
		Source: SourceDaileyCore,
		Token:  token,
	}
	if r.cache != nil {
		if err := r.cache.Put(ctx, token, principal); err != nil && r.logg != nil {
			r.logg.WarnErr(ctx, "principal cache write failed", err)
		}
	}
	return principal, nil
}
