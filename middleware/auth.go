package middleware

import (
	"net/http"
	"strings"

	"glowworm/auth"

	"github.com/gin-gonic/gin"
)

// identityKey is the context key the verified identity is stored under
const identityKey = "glowworm.identity"

// Auth returns a middleware requiring a valid bearer token. A nil
// verifier disables authentication entirely (local setups without a
// configured secret).
func Auth(verifier *auth.Verifier) gin.HandlerFunc {
	if verifier == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
			})
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
			})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the verified identity for a request, if any
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return auth.Identity{}, false
	}
	identity, ok := value.(auth.Identity)
	return identity, ok
}
