package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// RateLimitMW applies the per-caller sliding window before the handler runs.
type RateLimitMW struct {
	limiter   domain.RateLimiter
	auditSink domain.AuditSink
}

// NewRateLimitMW creates new rate limit middleware
func NewRateLimitMW(limiter domain.RateLimiter, auditSink domain.AuditSink) *RateLimitMW {
	return &RateLimitMW{limiter: limiter, auditSink: auditSink}
}

// Limit returns a handler enforcing the given class budget. Unauthenticated
// routes fall back to the client address as the caller key.
func (mw *RateLimitMW) Limit(class domain.LimitClass) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "addr:" + c.ClientIP()
		if caller, ok := CallerFrom(c); ok {
			key = caller.RateLimitKey()
		}

		decision, err := mw.limiter.Allow(c.Request.Context(), key, class)
		if err != nil {
			// Fail open: an unreachable limiter backend never costs
			// availability.
			c.Next()
			return
		}
		if !decision.Allowed {
			mw.auditSink.Record(&domain.AuditEvent{
				EventType: domain.RateLimitStruckEvent,
				Origin:    c.ClientIP(),
				Metadata:  map[string]interface{}{"class": string(class), "key": key},
			})
			c.Header("Retry-After", fmt.Sprintf("%d", int(decision.RetryAfter.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests", "code": "rate_limited"})
			c.Abort()
			return
		}
		c.Next()
	}
}
