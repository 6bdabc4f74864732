package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// PolicyMW enforces route policies for staff callers. Patient sessions carry
// no role; their authority comes from session ownership checks inside the
// services, so they bypass the policy engine here.
type PolicyMW struct {
	enforcer domain.PolicyEnforcer
}

// NewPolicyMW creates new policy enforcement middleware
func NewPolicyMW(enforcer domain.PolicyEnforcer) *PolicyMW {
	return &PolicyMW{enforcer: enforcer}
}

// Enforce returns the authorization middleware handler
func (mw *PolicyMW) Enforce() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "caller not resolved", "code": "unauthorized"})
			c.Abort()
			return
		}
		if caller.Kind != domain.CallerStaff {
			c.Next()
			return
		}

		allowed, err := mw.enforcer.Enforce("role_"+caller.Role, c.Request.URL.Path, c.Request.Method)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "authorization check failed", "code": "internal"})
			c.Abort()
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "not permitted for this role", "code": "forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}
