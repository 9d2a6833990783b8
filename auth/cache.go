// Package auth verifies API bearer tokens. Verified tokens are held in
// an explicit, injectable TTL cache rather than module-level state, so
// separate server instances (and tests) never share or leak auth state.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultCacheTTL bounds how long a verified token is trusted without
// re-checking its signature
const DefaultCacheTTL = 5 * time.Minute

// ErrInvalidToken is returned for tokens that fail verification
var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified principal carried by a token
type Identity struct {
	Subject string
}

type cacheEntry struct {
	identity  Identity
	expiresAt time.Time
}

// TokenCache caches verified tokens for a bounded TTL with explicit
// invalidation. Safe for concurrent use.
type TokenCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewTokenCache creates a cache with the given TTL; zero falls back to
// DefaultCacheTTL.
func NewTokenCache(ttl time.Duration) *TokenCache {
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	return &TokenCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached identity for a token if still fresh
func (c *TokenCache) Get(token string) (Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[token]
	if !ok {
		return Identity{}, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, token)
		return Identity{}, false
	}
	return entry.identity, true
}

// Put caches a verified identity until the TTL elapses
func (c *TokenCache) Put(token string, identity Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token] = cacheEntry{
		identity:  identity,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Invalidate drops a single token from the cache
func (c *TokenCache) Invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, token)
}

// InvalidateAll drops every cached token
func (c *TokenCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Verifier checks HS256 bearer tokens, consulting the cache first
type Verifier struct {
	secret []byte
	cache  *TokenCache
}

// NewVerifier creates a verifier for the given signing secret backed by
// the given cache
func NewVerifier(secret string, cache *TokenCache) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		cache:  cache,
	}
}

// Verify validates a token and returns the identity it carries
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	if identity, ok := v.cache.Get(tokenString); ok {
		return identity, nil
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return Identity{}, ErrInvalidToken
	}

	identity := Identity{Subject: subject}
	v.cache.Put(tokenString, identity)
	return identity, nil
}
