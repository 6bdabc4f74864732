package httpx

import (
	"github.com/gin-gonic/gin"

	"github.com/GreenViva/esiriplus-sub002/domain"
	"github.com/GreenViva/esiriplus-sub002/internal/http/handlers"
	"github.com/GreenViva/esiriplus-sub002/internal/http/middleware"
)

// BuildRouter wires middleware and handlers into the gin engine. Session
// issuance and recovery stay outside credential verification since their
// callers by definition hold no usable credential; everything else sits
// behind the verifier, the policy engine, and a per-class rate limit.
func BuildRouter(
	sh *handlers.SessionHandlers,
	ch *handlers.ConsultationHandlers,
	dh *handlers.DoctorHandlers,
	ph *handlers.PolicyHandlers,
	authMW *middleware.AuthMW,
	policyMW *middleware.PolicyMW,
	rateMW *middleware.RateLimitMW,
	allowedOrigin string,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(allowedOrigin))

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	session := r.Group("/session")
	session.POST("", rateMW.Limit(domain.LimitClassMutate), sh.Create)
	session.POST("/refresh", rateMW.Limit(domain.LimitClassMutate), sh.Refresh)
	session.POST("/recover-by-id", rateMW.Limit(domain.LimitClassRecovery), sh.RecoverByID)
	session.POST("/recover-by-questions", rateMW.Limit(domain.LimitClassRecovery), sh.RecoverByQuestions)
	session.POST("/recovery-setup", authMW.Verify(), rateMW.Limit(domain.LimitClassRecovery), sh.RecoverySetup)

	v := r.Group("/", authMW.Verify(), policyMW.Enforce())
	// The action muxes pick their own limit class from the action field.
	v.POST("/consultation-request", ch.RequestAction)
	v.POST("/consultation", ch.Action)
	v.GET("/consultation/:id/transcript", rateMW.Limit(domain.LimitClassRead), ch.Transcript)
	v.POST("/doctor/availability", rateMW.Limit(domain.LimitClassMutate), dh.SetAvailability)

	adm := r.Group("/admin", authMW.Verify(), policyMW.Enforce())
	adm.GET("/policies", ph.List)
	adm.POST("/policies", ph.Add)
	adm.DELETE("/policies", ph.Remove)

	return r
}
