// Package token implements the access-token cache the flow engine consults
// before every connector call that requires bearer-style authentication. It
// generalizes the LRU/TTL shape of provider.InMemoryProviderCache
// (provider/cache.go) — built for caching live provider instances — into a
// cache of short-lived connector access tokens, backed by a local
// patrickmn/go-cache layer with an optional redis/go-redis/v9 layer behind
// it for multi-instance deployments, and coalesces concurrent refreshes with
// golang.org/x/sync/singleflight so a token-expiry moment never produces a
// thundering herd of identical OAuth calls against one connector.
package token

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/mstgnz/payflow/apperr"
)

// Token is a cached connector access token and its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

func (t Token) expired() bool { return time.Now().After(t.ExpiresAt) }

// Refresher fetches a fresh Token from the connector's auth endpoint. It is
// supplied by the caller (a connector's token-refresh implementation), not
// by this package, so Cache stays connector-agnostic.
type Refresher func(ctx context.Context) (Token, error)

// negativeCacheTTL bounds how long a failed refresh is remembered before the
// next caller is allowed to retry, per spec's access-token negative-cache
// backoff requirement.
const negativeCacheTTL = 5 * time.Second

// Cache caches access tokens keyed by connector+merchant-account id.
type Cache struct {
	local  *gocache.Cache
	redis  *redis.Client
	group  singleflight.Group
}

// New returns a Cache with a local in-process layer. If redisClient is
// non-nil it is consulted as a shared second tier so multiple engine
// instances reuse the same token instead of each refreshing independently.
func New(redisClient *redis.Client) *Cache {
	return &Cache{
		local: gocache.New(5*time.Minute, 10*time.Minute),
		redis: redisClient,
	}
}

// Get returns a valid cached token for key, calling refresh exactly once
// per key even under concurrent callers (singleflight), and remembering a
// refresh failure for negativeCacheTTL before letting another caller retry.
func (c *Cache) Get(ctx context.Context, key string, refresh Refresher) (Token, error) {
	if v, ok := c.local.Get(key); ok {
		switch t := v.(type) {
		case Token:
			if !t.expired() {
				return t, nil
			}
		case error:
			return Token{}, apperr.Wrap(apperr.KindAuthTokenUnavailable, t, "access token refresh recently failed, backing off").With("key", key)
		}
	}

	if c.redis != nil {
		if tok, err := c.getRemote(ctx, key); err == nil {
			c.local.Set(key, tok, time.Until(tok.ExpiresAt))
			return tok, nil
		}
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		tok, err := refresh(ctx)
		if err != nil {
			c.local.Set(key, err, negativeCacheTTL)
			return Token{}, err
		}
		c.local.Set(key, tok, time.Until(tok.ExpiresAt))
		if c.redis != nil {
			c.setRemote(ctx, key, tok)
		}
		return tok, nil
	})
	if err != nil {
		return Token{}, apperr.Wrap(apperr.KindAuthTokenUnavailable, err, "access token refresh failed").With("key", key)
	}
	return result.(Token), nil
}

// Invalidate drops a cached token, forcing the next Get to refresh.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.local.Delete(key)
	if c.redis != nil {
		c.redis.Del(ctx, redisKey(key))
	}
}

func (c *Cache) getRemote(ctx context.Context, key string) (Token, error) {
	val, err := c.redis.Get(ctx, redisKey(key)).Result()
	if err != nil {
		return Token{}, err
	}
	ttl, err := c.redis.TTL(ctx, redisKey(key)).Result()
	if err != nil || ttl <= 0 {
		return Token{}, fmt.Errorf("token: no valid ttl for %s", key)
	}
	return Token{Value: val, ExpiresAt: time.Now().Add(ttl)}, nil
}

func (c *Cache) setRemote(ctx context.Context, key string, tok Token) {
	ttl := time.Until(tok.ExpiresAt)
	if ttl <= 0 {
		return
	}
	c.redis.Set(ctx, redisKey(key), tok.Value, ttl)
}

func redisKey(key string) string {
	return fmt.Sprintf("payflow:token:%s", key)
}
