package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// ErrorBody is the single error envelope every endpoint shares.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RespondError maps a domain error to its HTTP status and stable code. The
// mapping is deliberately coarse for authentication and recovery failures so
// responses never become an existence oracle.
func RespondError(c *gin.Context, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, ErrorBody{Error: validation.Message, Code: validation.Code})
		return
	}

	var insufficient *domain.InsufficientAnswersError
	if errors.As(err, &insufficient) {
		c.JSON(http.StatusBadRequest, ErrorBody{
			Error: fmt.Sprintf("got %d of %d required", insufficient.Got, insufficient.Need),
			Code:  "insufficient_answers",
		})
		return
	}

	var rateLimited *domain.RateLimitError
	if errors.As(err, &rateLimited) {
		c.Header("Retry-After", fmt.Sprintf("%d", int(rateLimited.RetryAfter.Seconds())))
		c.JSON(http.StatusTooManyRequests, ErrorBody{Error: "too many requests", Code: "rate_limited"})
		return
	}

	var conflict *domain.StateConflictError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusBadRequest, ErrorBody{
			Error: fmt.Sprintf("state changed, current status is %s", conflict.Current),
			Code:  "state_conflict",
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorBody{Error: "invalid or expired credential", Code: "unauthorized"})
	case errors.Is(err, domain.ErrInsufficientRole), errors.Is(err, domain.ErrNotParticipant):
		c.JSON(http.StatusForbidden, ErrorBody{Error: "not permitted for this caller", Code: "forbidden"})
	case errors.Is(err, domain.ErrRecoveryNotFound), errors.Is(err, domain.ErrRecoveryInvalidAnswer):
		// Same body for unknown id, wrong answers, and inactive rows.
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "invalid id or not found", Code: "recovery_failed"})
	case errors.Is(err, domain.ErrRecoveryLocked):
		c.JSON(http.StatusTooManyRequests, ErrorBody{Error: "too many recovery attempts, try again later", Code: "recovery_locked"})
	case errors.Is(err, domain.ErrRecoveryAlreadySetup):
		c.JSON(http.StatusConflict, ErrorBody{Error: "recovery already configured", Code: "recovery_already_setup"})
	case errors.Is(err, domain.ErrDoctorBusy):
		// Soft conflict with a machine-readable booking fallback hint.
		c.JSON(http.StatusConflict, gin.H{
			"error":           "doctor is in another consultation",
			"code":            "doctor_busy",
			"suggest_booking": true,
		})
	case errors.Is(err, domain.ErrDoctorNotFound), errors.Is(err, domain.ErrRequestNotFound),
		errors.Is(err, domain.ErrConsultationNotFound), errors.Is(err, domain.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorBody{Error: "resource not found", Code: "not_found"})
	case errors.Is(err, domain.ErrDoctorUnverified):
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "doctor is not verified", Code: "doctor_unverified"})
	case errors.Is(err, domain.ErrDoctorUnavailable):
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "doctor is not available", Code: "doctor_unavailable"})
	case errors.Is(err, domain.ErrRequestPending):
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "a pending request already exists", Code: "request_pending"})
	case errors.Is(err, domain.ErrRequestFinalized):
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "request already finalized", Code: "request_finalized"})
	case errors.Is(err, domain.ErrRequestNotDue):
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "request has not expired yet", Code: "request_not_due"})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "action not valid in the current state", Code: "invalid_transition"})
	case errors.Is(err, domain.ErrConsultationClosed):
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "consultation already completed", Code: "consultation_closed"})
	case errors.Is(err, domain.ErrPaymentNotConfirmed):
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "payment not confirmed", Code: "payment_not_confirmed"})
	case errors.Is(err, domain.ErrUnknownAction):
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "unknown action", Code: "unknown_action"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorBody{Error: "internal error", Code: "internal"})
	}
}
