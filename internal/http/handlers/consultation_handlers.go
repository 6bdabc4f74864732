package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GreenViva/esiriplus-sub002/domain"
	"github.com/GreenViva/esiriplus-sub002/internal/http/middleware"
)

// ConsultationHandlers multiplexes the request-matching and consultation
// state machine actions. One action per call; unknown actions are a hard
// validation error, never a no-op.
type ConsultationHandlers struct {
	matcherSvc       domain.MatcherService
	consultationSvc  domain.ConsultationService
	consultationRepo domain.ConsultationRepository
	limiter          domain.RateLimiter
	auditSink        domain.AuditSink
}

// NewConsultationHandlers creates new consultation handlers
func NewConsultationHandlers(
	matcherSvc domain.MatcherService,
	consultationSvc domain.ConsultationService,
	consultationRepo domain.ConsultationRepository,
	limiter domain.RateLimiter,
	auditSink domain.AuditSink,
) *ConsultationHandlers {
	return &ConsultationHandlers{
		matcherSvc:       matcherSvc,
		consultationSvc:  consultationSvc,
		consultationRepo: consultationRepo,
		limiter:          limiter,
		auditSink:        auditSink,
	}
}

// allow applies the rate-limit class here instead of in middleware because
// the class depends on the action field inside the body: polling actions get
// the read budget, everything else the mutate budget.
func (h *ConsultationHandlers) allow(c *gin.Context, caller domain.Caller, class domain.LimitClass) bool {
	decision, err := h.limiter.Allow(c.Request.Context(), caller.RateLimitKey(), class)
	if err != nil {
		// Fail open.
		return true
	}
	if !decision.Allowed {
		h.auditSink.Record(&domain.AuditEvent{
			EventType: domain.RateLimitStruckEvent,
			Origin:    caller.Origin,
			Metadata:  map[string]interface{}{"class": string(class), "key": caller.RateLimitKey()},
		})
		RespondError(c, &domain.RateLimitError{RetryAfter: decision.RetryAfter})
		return false
	}
	return true
}

func limitClassFor(action string) domain.LimitClass {
	switch action {
	case "sync", "status":
		return domain.LimitClassRead
	default:
		return domain.LimitClassMutate
	}
}

// RequestActionRequest represents one consultation-request action call
type RequestActionRequest struct {
	Action      string `json:"action" binding:"required"`
	RequestID   string `json:"request_id"`
	DoctorID    string `json:"doctor_id"`
	ServiceType string `json:"service_type"`
}

// ConsultationActionRequest represents one consultation engine action call
type ConsultationActionRequest struct {
	Action         string `json:"action" binding:"required"`
	ConsultationID string `json:"consultation_id" binding:"required"`
	PaymentID      string `json:"payment_id"`
}

func requestJSON(r *domain.ConsultationRequest) gin.H {
	body := gin.H{
		"request_id":   r.ID,
		"doctor_id":    r.DoctorID,
		"service_type": r.ServiceType,
		"status":       r.Status,
		"expires_at":   r.ExpiresAt,
	}
	if r.ConsultationID != "" {
		body["consultation_id"] = r.ConsultationID
	}
	return body
}

func consultationJSON(c *domain.Consultation) gin.H {
	return gin.H{
		"consultation_id":           c.ID,
		"doctor_id":                 c.DoctorID,
		"service_type":              c.ServiceType,
		"consultation_fee":          c.ConsultationFee,
		"status":                    c.Status,
		"scheduled_end_at":          c.ScheduledEndAt,
		"grace_period_end_at":       c.GracePeriodEndAt,
		"extension_count":           c.ExtensionCount,
		"original_duration_minutes": c.OriginalDurationMinutes,
		"session_start_time":        c.SessionStartTime,
	}
}

func stateJSON(state *domain.ConsultationState) gin.H {
	body := consultationJSON(state.Consultation)
	body["server_time"] = state.ServerTime
	if state.PaymentID != "" {
		body["payment_id"] = state.PaymentID
	}
	return body
}

// RequestAction handles POST /consultation-request
func (h *ConsultationHandlers) RequestAction(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		RespondError(c, domain.ErrUnauthorized)
		return
	}

	var req RequestActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
		return
	}
	if !h.allow(c, caller, limitClassFor(req.Action)) {
		return
	}

	ctx := c.Request.Context()
	switch req.Action {
	case "create":
		if req.DoctorID == "" || req.ServiceType == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "doctor_id and service_type are required", "code": "invalid_request"})
			return
		}
		request, err := h.matcherSvc.Create(ctx, caller, req.DoctorID, req.ServiceType)
		if err != nil {
			RespondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, requestJSON(request))
	case "accept":
		if req.RequestID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "request_id is required", "code": "invalid_request"})
			return
		}
		consultation, err := h.matcherSvc.Accept(ctx, caller, req.RequestID)
		if err != nil {
			RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, consultationJSON(consultation))
	case "reject", "expire", "status":
		if req.RequestID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "request_id is required", "code": "invalid_request"})
			return
		}
		var (
			request *domain.ConsultationRequest
			err     error
		)
		switch req.Action {
		case "reject":
			request, err = h.matcherSvc.Reject(ctx, caller, req.RequestID)
		case "expire":
			request, err = h.matcherSvc.Expire(ctx, caller, req.RequestID)
		default:
			request, err = h.matcherSvc.Status(ctx, caller, req.RequestID)
		}
		if err != nil {
			RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, requestJSON(request))
	default:
		RespondError(c, domain.ErrUnknownAction)
	}
}

// Action handles POST /consultation
func (h *ConsultationHandlers) Action(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		RespondError(c, domain.ErrUnauthorized)
		return
	}

	var req ConsultationActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
		return
	}
	if !h.allow(c, caller, limitClassFor(req.Action)) {
		return
	}

	ctx := c.Request.Context()
	var (
		state *domain.ConsultationState
		err   error
	)
	switch req.Action {
	case "sync":
		state, err = h.consultationSvc.Sync(ctx, caller, req.ConsultationID)
	case "end":
		state, err = h.consultationSvc.End(ctx, caller, req.ConsultationID)
	case "timer_expired":
		state, err = h.consultationSvc.TimerExpired(ctx, caller, req.ConsultationID)
	case "request_extension":
		state, err = h.consultationSvc.RequestExtension(ctx, caller, req.ConsultationID)
	case "accept_extension":
		state, err = h.consultationSvc.AcceptExtension(ctx, caller, req.ConsultationID)
	case "decline_extension":
		state, err = h.consultationSvc.DeclineExtension(ctx, caller, req.ConsultationID)
	case "payment_confirmed":
		if req.PaymentID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "payment_id is required", "code": "invalid_request"})
			return
		}
		state, err = h.consultationSvc.PaymentConfirmed(ctx, caller, req.ConsultationID, req.PaymentID)
	case "cancel_payment":
		state, err = h.consultationSvc.CancelPayment(ctx, caller, req.ConsultationID)
	default:
		RespondError(c, domain.ErrUnknownAction)
		return
	}
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stateJSON(state))
}

// Transcript handles GET /consultation/:id/transcript. Participants only.
func (h *ConsultationHandlers) Transcript(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		RespondError(c, domain.ErrUnauthorized)
		return
	}

	consultationID := c.Param("id")
	consultation, err := h.consultationRepo.FindByID(c.Request.Context(), consultationID)
	if err != nil {
		RespondError(c, err)
		return
	}
	if !consultation.IsParticipant(caller) {
		RespondError(c, domain.ErrNotParticipant)
		return
	}

	entries, err := h.consultationRepo.Transcript(c.Request.Context(), consultationID)
	if err != nil {
		RespondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{
			"kind":       e.Kind,
			"body":       e.Body,
			"created_at": e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"consultation_id": consultationID, "entries": out})
}
