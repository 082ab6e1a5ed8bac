package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	keys  KeySet
	err   error
}

func (f *countingFetcher) Fetch(_ context.Context, issuer string) (KeySet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[issuer]++
	if f.err != nil {
		return nil, f.err
	}
	return f.keys, nil
}

func (f *countingFetcher) Calls(issuer string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[issuer]
}

func (f *countingFetcher) Fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

const testIssuer = "https://idp.example.com/pool"

func TestKeySetCache_ServesFreshEntryWithoutFetching(t *testing.T) {
	clock := newFakeClock()
	fetcher := &countingFetcher{keys: KeySet{"k1": "material"}}
	cache := NewKeySetCache(fetcher, WithClock(clock.Now), WithTTL(time.Hour))

	first, err := cache.Get(context.Background(), testIssuer)
	require.NoError(t, err)
	clock.Advance(59 * time.Minute)
	second, err := cache.Get(context.Background(), testIssuer)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fetcher.Calls(testIssuer))
}

func TestKeySetCache_RefreshesOnceAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	fetcher := &countingFetcher{keys: KeySet{"k1": "material"}}
	cache := NewKeySetCache(fetcher, WithClock(clock.Now), WithTTL(time.Hour))

	_, err := cache.Get(context.Background(), testIssuer)
	require.NoError(t, err)

	clock.Advance(time.Hour + time.Second)
	_, err = cache.Get(context.Background(), testIssuer)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.Calls(testIssuer))

	// The refresh restarts the window.
	_, err = cache.Get(context.Background(), testIssuer)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.Calls(testIssuer))
}

func TestKeySetCache_ServesStaleOnRefreshFailure(t *testing.T) {
	clock := newFakeClock()
	fetcher := &countingFetcher{keys: KeySet{"k1": "material"}}
	cache := NewKeySetCache(fetcher, WithClock(clock.Now), WithTTL(time.Hour))

	original, err := cache.Get(context.Background(), testIssuer)
	require.NoError(t, err)

	fetcher.Fail(errors.New("proxy down"))
	clock.Advance(2 * time.Hour)

	stale, err := cache.Get(context.Background(), testIssuer)
	require.NoError(t, err)
	assert.Equal(t, original, stale)
	assert.Equal(t, 2, fetcher.Calls(testIssuer))
}

func TestKeySetCache_FailsWithoutPreviousEntry(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("connection refused")}
	cache := NewKeySetCache(fetcher)

	keys, err := cache.Get(context.Background(), testIssuer)
	assert.Nil(t, keys)
	assert.ErrorIs(t, err, ErrKeySetUnavailable)
	assert.Equal(t, KindKeySetUnavailable, KindOf(err))
}

func TestKeySetCache_EntriesArePerIssuer(t *testing.T) {
	fetcher := &countingFetcher{keys: KeySet{"k1": "material"}}
	cache := NewKeySetCache(fetcher)

	_, err := cache.Get(context.Background(), testIssuer)
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), "https://idp.example.com/other")
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), testIssuer)
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.Calls(testIssuer))
	assert.Equal(t, 1, fetcher.Calls("https://idp.example.com/other"))
}

func TestKeySetCache_Invalidate(t *testing.T) {
	fetcher := &countingFetcher{keys: KeySet{"k1": "material"}}
	cache := NewKeySetCache(fetcher)

	_, _ = cache.Get(context.Background(), testIssuer)
	cache.Invalidate(testIssuer)
	_, _ = cache.Get(context.Background(), testIssuer)

	assert.Equal(t, 2, fetcher.Calls(testIssuer))
}

func TestKeySetCache_ConcurrentGets(t *testing.T) {
	clock := newFakeClock()
	fetcher := &countingFetcher{keys: KeySet{"k1": "material"}}
	cache := NewKeySetCache(fetcher, WithClock(clock.Now))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			keys, err := cache.Get(context.Background(), testIssuer)
			assert.NoError(t, err)
			assert.Contains(t, keys, "k1")
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, fetcher.Calls(testIssuer), 1)
}

func jwkFor(kid string, pub *rsa.PublicKey) map[string]string {
	return map[string]string{
		"kty": "RSA",
		"kid": kid,
		"alg": "RS256",
		"use": "sig",
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = writeJSON(w, map[string]any{"keys": []any{
			jwkFor("rsa-1", &key.PublicKey),
			map[string]string{"kty": "RSA", "n": "AQAB", "e": "AQAB"},
			map[string]string{"kty": "EC", "kid": "ec-1", "crv": "P-256"},
		}})
	}))
	defer srv.Close()

	keys, err := NewHTTPFetcher(srv.Client()).Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)

	assert.Equal(t, "/.well-known/jwks.json", path)
	require.Len(t, keys, 1)
	pub, ok := keys["rsa-1"].(*rsa.PublicKey)
	require.True(t, ok)
	assert.True(t, pub.Equal(&key.PublicKey))
}

func TestHTTPFetcher_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-2xx", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"invalid json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = fmt.Fprint(w, "<html>")
		}},
		{"missing keys member", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = fmt.Fprint(w, `{"foo":[]}`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewHTTPFetcher(srv.Client()).Fetch(context.Background(), srv.URL)
			assert.Error(t, err)
		})
	}
}

func TestHTTPFetcher_RespectsContextTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cache := NewKeySetCache(NewHTTPFetcher(srv.Client()), WithFetchTimeout(50*time.Millisecond))
	_, err := cache.Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrKeySetUnavailable)
}

func TestJWKSURL(t *testing.T) {
	assert.Equal(t, "https://idp.example.com/pool/.well-known/jwks.json", JWKSURL("https://idp.example.com/pool"))
	assert.Equal(t, "https://idp.example.com/pool/.well-known/jwks.json", JWKSURL("https://idp.example.com/pool/"))
}
