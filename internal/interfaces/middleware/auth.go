package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-chat-stream/internal/infrastructure/auth"
)

const identityKey = "identity"

// RequireAuth verifies the session cookie and attaches the identity to
// the request context. Every failure is the same generic 401.
func RequireAuth(authenticator *auth.TokenAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := authenticator.Authenticate(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireAdmin gates admin-only routes. It must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Identity(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin access required",
			})
			return
		}
		c.Next()
	}
}

// Identity returns the authenticated identity set by RequireAuth.
func Identity(c *gin.Context) auth.Identity {
	if v, exists := c.Get(identityKey); exists {
		if identity, ok := v.(auth.Identity); ok {
			return identity
		}
	}
	return auth.Identity{}
}
