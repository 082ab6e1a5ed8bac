package auth

import (
	"context"
	"crypto"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"commentservice/internal/observability"
)

// KeySet maps key identifiers to public key material.
type KeySet map[string]crypto.PublicKey

// Fetcher retrieves the current key set published by an issuer.
type Fetcher interface {
	Fetch(ctx context.Context, issuer string) (KeySet, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, issuer string) (KeySet, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, issuer string) (KeySet, error) {
	return f(ctx, issuer)
}

const (
	// DefaultKeySetTTL is how long a fetched key set is served without a refresh.
	DefaultKeySetTTL = time.Hour
	// DefaultFetchTimeout bounds a single key-set fetch.
	DefaultFetchTimeout = 10 * time.Second
)

type cachedKeySet struct {
	keys      KeySet
	fetchedAt time.Time
}

// KeySetCache caches one key set per issuer. Fresh entries are served without
// network access; expired entries trigger a refresh, and a failed refresh
// falls back to the previous entry when there is one.
//
// The mutex only guards the map. Concurrent refreshes of the same issuer are
// not deduplicated and the last successful fetch wins.
type KeySetCache struct {
	fetcher Fetcher
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[string]cachedKeySet
}

// CacheOption configures a KeySetCache.
type CacheOption func(*KeySetCache)

// WithTTL sets the freshness window.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *KeySetCache) { c.ttl = ttl }
}

// WithFetchTimeout bounds each remote fetch.
func WithFetchTimeout(timeout time.Duration) CacheOption {
	return func(c *KeySetCache) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *KeySetCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCacheLogger sets the logger used for refresh failures.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *KeySetCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewKeySetCache creates an empty cache backed by fetcher.
func NewKeySetCache(fetcher Fetcher, opts ...CacheOption) *KeySetCache {
	c := &KeySetCache{
		fetcher: fetcher,
		ttl:     DefaultKeySetTTL,
		timeout: DefaultFetchTimeout,
		now:     time.Now,
		logger:  slog.Default(),
		entries: make(map[string]cachedKeySet),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the key set for issuer. It fails with ErrKeySetUnavailable only
// when nothing is cached for issuer and the fetch fails.
func (c *KeySetCache) Get(ctx context.Context, issuer string) (KeySet, error) {
	c.mu.RLock()
	entry, ok := c.entries[issuer]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.keys, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	keys, err := c.fetcher.Fetch(fetchCtx, issuer)
	if err != nil {
		if ok {
			observability.JWKSFetches.WithLabelValues("stale").Inc()
			c.logger.WarnContext(ctx, "JWKS refresh failed, serving cached key set",
				slog.String("issuer", issuer),
				slog.Time("fetched_at", entry.fetchedAt),
				slog.String("error", err.Error()),
			)
			return entry.keys, nil
		}
		observability.JWKSFetches.WithLabelValues("error").Inc()
		c.logger.ErrorContext(ctx, "JWKS fetch failed with no cached key set",
			slog.String("issuer", issuer),
			slog.String("error", err.Error()),
		)
		return nil, newError(KindKeySetUnavailable, fmt.Errorf("fetch %s: %w", issuer, err))
	}

	observability.JWKSFetches.WithLabelValues("ok").Inc()
	c.mu.Lock()
	c.entries[issuer] = cachedKeySet{keys: keys, fetchedAt: c.now()}
	c.mu.Unlock()

	return keys, nil
}

// Invalidate drops the cached entry for issuer.
func (c *KeySetCache) Invalidate(issuer string) {
	c.mu.Lock()
	delete(c.entries, issuer)
	c.mu.Unlock()
}
