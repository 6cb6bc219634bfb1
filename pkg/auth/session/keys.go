package session

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/castingly/castingly-backend/pkg/redis"
)

// KeyCheck asks the issuer whether an API key is valid.
type KeyCheck func(ctx context.Context, key string) error

type apiKeyKeyer interface {
	APIKeyKey(keyDigest string) string
}

// KeyVerifier remembers media API keys that passed KeyCheck for ttl, keyed by
// digest. Only successes are cached.
type KeyVerifier struct {
	store cacheStore
	keyer apiKeyKeyer
	check KeyCheck
	ttl   time.Duration
}

// NewKeyVerifier builds a verifier. A nil client disables caching.
func NewKeyVerifier(client *redisclient.Client, check KeyCheck, ttl time.Duration) (*KeyVerifier, error) {
	if check == nil {
		return nil, fmt.Errorf("key check is required")
	}
	v := &KeyVerifier{check: check, ttl: ttl}
	if client != nil && ttl > 0 {
		v.store = client
		v.keyer = client
	}
	return v, nil
}

// Verify returns nil when key is known good or the issuer accepts it.
func (v *KeyVerifier) Verify(ctx context.Context, key string) error {
	if v.store == nil {
		return v.check(ctx, key)
	}
	cacheKey := v.keyer.APIKeyKey(Digest(key))
	if _, err := v.store.Get(ctx, cacheKey); err == nil {
		return nil
	}
	if err := v.check(ctx, key); err != nil {
		return err
	}
	_ = v.store.Set(ctx, cacheKey, "1", v.ttl)
	return nil
}
