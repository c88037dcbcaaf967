package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/socialhub/socialhub/backend/go-services/pkg/logger"
	"github.com/socialhub/socialhub/backend/go-services/pkg/metrics"
)

// IdentityKey is the gin context key holding the authenticated identity.
const IdentityKey = "identity"

// AccessVerifier resolves an access token to an identity.
type AccessVerifier interface {
	VerifyAccess(raw string) (string, error)
}

// AuthPolicy configures the auth gate.
type AuthPolicy struct {
	// Required rejects requests without a bearer token. When false, requests
	// without a credential pass through anonymously.
	Required bool
	// Debug logs the specific rejection reason.
	Debug bool
}

// AuthMiddleware verifies Bearer access tokens. A credential that is present
// but invalid is always rejected, whatever the policy.
func AuthMiddleware(ver AccessVerifier, policy AuthPolicy) gin.HandlerFunc {
	name := "auth][optional"
	if policy.Required {
		name = "auth][protect"
	}
	log := logger.Named(name, policy.Debug)
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			if !policy.Required {
				log.Debugf("no bearer credential, continuing anonymously")
				c.Next()
				return
			}
			log.Debugf("missing token")
			metrics.AuthRejected.WithLabelValues("missing").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authorized"})
			return
		}

		id, err := ver.VerifyAccess(token)
		if err != nil {
			log.Debugf("verification failed: %v", err)
			metrics.AuthRejected.WithLabelValues("invalid").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(IdentityKey, id)
		log.Debugf("authorized %s", id)
		c.Next()
	}
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(ver AccessVerifier, debug bool) gin.HandlerFunc {
	return AuthMiddleware(ver, AuthPolicy{Required: true, Debug: debug})
}

// OptionalAuth lets anonymous requests through but rejects bad credentials.
func OptionalAuth(ver AccessVerifier, debug bool) gin.HandlerFunc {
	return AuthMiddleware(ver, AuthPolicy{Required: false, Debug: debug})
}

// Identity returns the identity attached by the auth gate.
func Identity(c *gin.Context) (string, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// value. It reports false when the scheme is not Bearer or the token is empty.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}
