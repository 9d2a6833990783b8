package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestTokenCacheTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	cache := NewTokenCache(time.Minute)
	cache.now = func() time.Time { return now }

	cache.Put("token-a", Identity{Subject: "display-1"})

	identity, ok := cache.Get("token-a")
	require.True(t, ok)
	assert.Equal(t, "display-1", identity.Subject)

	// Still fresh just inside the TTL
	now = now.Add(59 * time.Second)
	_, ok = cache.Get("token-a")
	assert.True(t, ok)

	// Expired entries are evicted on read
	now = now.Add(2 * time.Second)
	_, ok = cache.Get("token-a")
	assert.False(t, ok)
}

func TestTokenCacheInvalidation(t *testing.T) {
	cache := NewTokenCache(time.Minute)
	cache.Put("a", Identity{Subject: "one"})
	cache.Put("b", Identity{Subject: "two"})

	cache.Invalidate("a")
	_, ok := cache.Get("a")
	assert.False(t, ok)
	_, ok = cache.Get("b")
	assert.True(t, ok)

	cache.InvalidateAll()
	_, ok = cache.Get("b")
	assert.False(t, ok)
}

func TestTokenCacheDefaultTTL(t *testing.T) {
	cache := NewTokenCache(0)
	assert.Equal(t, DefaultCacheTTL, cache.ttl)
}

func TestVerify(t *testing.T) {
	const secret = "signing-secret"
	cache := NewTokenCache(time.Minute)
	verifier := NewVerifier(secret, cache)

	token := signedToken(t, secret, "display-1")

	identity, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "display-1", identity.Subject)

	// Verification populates the cache
	cached, ok := cache.Get(token)
	require.True(t, ok)
	assert.Equal(t, identity, cached)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	verifier := NewVerifier("signing-secret", NewTokenCache(time.Minute))

	// Wrong secret
	_, err := verifier.Verify(signedToken(t, "other-secret", "display-1"))
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Not a token at all
	_, err = verifier.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Missing subject
	_, err = verifier.Verify(signedToken(t, "signing-secret", ""))
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Unsigned token
	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "display-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = verifier.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyCacheHitSkipsExpiredSignatureCheck(t *testing.T) {
	const secret = "signing-secret"
	cache := NewTokenCache(time.Minute)
	verifier := NewVerifier(secret, cache)

	// A token the signature check would reject, trusted only because it
	// was cached
	cache.Put("revoked-upstream", Identity{Subject: "display-9"})

	identity, err := verifier.Verify("revoked-upstream")
	require.NoError(t, err)
	assert.Equal(t, "display-9", identity.Subject)

	// Once invalidated the signature check runs again and fails
	cache.Invalidate("revoked-upstream")
	_, err = verifier.Verify("revoked-upstream")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
