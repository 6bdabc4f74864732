package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// CallerKey is the gin context key holding the verified domain.Caller.
const CallerKey = "caller"

// AuthMW verifies the bearer credential on every protected route and stores
// the resolved caller in the request context.
type AuthMW struct {
	verifier  domain.CredentialVerifier
	auditSink domain.AuditSink
}

// NewAuthMW creates new credential verification middleware
func NewAuthMW(verifier domain.CredentialVerifier, auditSink domain.AuditSink) *AuthMW {
	return &AuthMW{verifier: verifier, auditSink: auditSink}
}

// Verify returns the middleware handler
func (mw *AuthMW) Verify() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required", "code": "unauthorized"})
			c.Abort()
			return
		}

		tokenParts := strings.SplitN(authHeader, " ", 2)
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format", "code": "unauthorized"})
			c.Abort()
			return
		}

		caller, err := mw.verifier.Verify(c.Request.Context(), tokenParts[1])
		if err != nil {
			mw.auditSink.Record(&domain.AuditEvent{
				EventType: domain.AccessDeniedEvent,
				Origin:    c.ClientIP(),
				ErrorMsg:  "credential verification failed",
			})
			// One generic message for every verification failure.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired credential", "code": "unauthorized"})
			c.Abort()
			return
		}
		caller.Origin = c.ClientIP()

		c.Set(CallerKey, *caller)
		c.Next()
	}
}

// CallerFrom extracts the verified caller placed by AuthMW.
func CallerFrom(c *gin.Context) (domain.Caller, bool) {
	v, ok := c.Get(CallerKey)
	if !ok {
		return domain.Caller{}, false
	}
	caller, ok := v.(domain.Caller)
	return caller, ok
}
