package dmapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const refreshSkew = time.Minute

// ErrStaticToken is returned when a fixed credential is asked to refresh.
var ErrStaticToken = errors.New("dmapi: static token cannot be refreshed")

// TokenSource supplies bearer credentials to the client.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	// Refresh discards the current credential and obtains a new one.
	Refresh(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer credential (a user token or a dmapi_ key).
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", errors.New("dmapi: empty token")
	}
	return string(s), nil
}

func (s StaticToken) Refresh(context.Context) (string, error) {
	return "", ErrStaticToken
}

// LoginFunc obtains a fresh service credential. A zero expiry means the
// provider's configured TTL applies.
type LoginFunc func(ctx context.Context) (token string, expiresAt time.Time, err error)

// SharedCache lets several instances reuse one service credential.
type SharedCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// ServiceTokenProvider caches the service credential with its expiry and
// refreshes it lazily. Concurrent refreshes collapse into one login.
type ServiceTokenProvider struct {
	login LoginFunc
	ttl   time.Duration
	now   func() time.Time

	shared    SharedCache
	sharedKey string

	mu     sync.Mutex
	token  string
	expiry time.Time

	group singleflight.Group
}

// ProviderOption customizes a ServiceTokenProvider.
type ProviderOption func(*ServiceTokenProvider)

// WithSharedCache stores the credential under key so other instances can reuse it.
func WithSharedCache(cache SharedCache, key string) ProviderOption {
	return func(p *ServiceTokenProvider) {
		if cache != nil && key != "" {
			p.shared = cache
			p.sharedKey = key
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ProviderOption {
	return func(p *ServiceTokenProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewServiceTokenProvider builds a provider around login.
func NewServiceTokenProvider(login LoginFunc, ttl time.Duration, opts ...ProviderOption) (*ServiceTokenProvider, error) {
	if login == nil {
		return nil, errors.New("dmapi: login func required")
	}
	if ttl <= 0 {
		ttl = 50 * time.Minute
	}
	p := &ServiceTokenProvider{login: login, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Token returns the cached credential or logs in when it is close to expiry.
func (p *ServiceTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.token != "" && p.expiry.Sub(p.now()) > refreshSkew {
		token := p.token
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	return p.fetch(ctx, true)
}

// Refresh forces a new login, bypassing both the local and shared cache.
func (p *ServiceTokenProvider) Refresh(ctx context.Context) (string, error) {
	p.mu.Lock()
	p.token = ""
	p.expiry = time.Time{}
	p.mu.Unlock()

	return p.fetch(ctx, false)
}

func (p *ServiceTokenProvider) fetch(ctx context.Context, allowShared bool) (string, error) {
	key := "refresh"
	if allowShared {
		key = "token"
	}
	v, err, _ := p.group.Do(key, func() (any, error) {
		if allowShared {
			if token, expiry, ok := p.readShared(ctx); ok {
				p.store(token, expiry)
				return token, nil
			}
		}

		token, expiresAt, err := p.login(ctx)
		if err != nil {
			return "", err
		}
		if token == "" {
			return "", errors.New("dmapi: login returned empty token")
		}
		if expiresAt.IsZero() {
			expiresAt = p.now().Add(p.ttl)
		}
		p.store(token, expiresAt)
		p.writeShared(ctx, token, expiresAt)
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (p *ServiceTokenProvider) store(token string, expiry time.Time) {
	p.mu.Lock()
	p.token = token
	p.expiry = expiry
	p.mu.Unlock()
}

// readShared returns the shared credential and its expiry. The shared entry
// lives refreshSkew less than the credential itself.
func (p *ServiceTokenProvider) readShared(ctx context.Context) (string, time.Time, bool) {
	if p.shared == nil {
		return "", time.Time{}, false
	}
	token, err := p.shared.Get(ctx, p.sharedKey)
	if err != nil || token == "" {
		return "", time.Time{}, false
	}
	ttl, err := p.shared.TTL(ctx, p.sharedKey)
	if err != nil || ttl <= 0 {
		return "", time.Time{}, false
	}
	return token, p.now().Add(ttl + refreshSkew), true
}

func (p *ServiceTokenProvider) writeShared(ctx context.Context, token string, expiry time.Time) {
	if p.shared == nil {
		return
	}
	ttl := expiry.Sub(p.now()) - refreshSkew
	if ttl <= 0 {
		return
	}
	_ = p.shared.Set(ctx, p.sharedKey, token, ttl)
}
