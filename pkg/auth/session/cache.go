package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/castingly/castingly-backend/pkg/auth"
	redisclient "github.com/castingly/castingly-backend/pkg/redis"
	redislib "github.com/redis/go-redis/v9"
)

type cacheStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type cacheKeyer interface {
	PrincipalKey(tokenDigest string) string
}

// Cache stores resolved principals in Redis keyed by a digest of the bearer
// token so the raw credential never reaches the cache.
type Cache struct {
	store cacheStore
	keyer cacheKeyer
	ttl   time.Duration
}

// NewCache constructs a principal cache backed by Redis.
func NewCache(client *redisclient.Client, ttl time.Duration) (*Cache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("principal cache ttl must be positive")
	}
	return &Cache{store: client, keyer: client, ttl: ttl}, nil
}

// Get returns the cached principal for token.
func (c *Cache) Get(ctx context.Context, token string) (*auth.Principal, bool, error) {
	raw, err := c.store.Get(ctx, c.key(token))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var p auth.Principal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		_ = c.store.Del(ctx, c.key(token))
		return nil, false, fmt.Errorf("decode cached principal: %w", err)
	}
	return &p, true, nil
}

// Put caches p for the configured TTL.
func (c *Cache) Put(ctx context.Context, token string, p *auth.Principal) error {
	if p == nil {
		return nil
	}
	encoded, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode principal: %w", err)
	}
	return c.store.Set(ctx, c.key(token), string(encoded), c.ttl)
}

// Invalidate drops the cached principal for token.
func (c *Cache) Invalidate(ctx context.Context, token string) error {
	return c.store.Del(ctx, c.key(token))
}

func (c *Cache) key(token string) string {
	return c.keyer.PrincipalKey(Digest(token))
}

// Digest returns the hex SHA-256 of token.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
