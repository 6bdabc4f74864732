package domain

import (
	"errors"
	"fmt"
	"time"
)

// Authentication errors. Handlers collapse all of these into one generic
// unauthorized response so callers cannot distinguish why a credential was
// rejected.
var (
	ErrUnauthorized       = errors.New("invalid or expired credential")
	ErrInsufficientRole   = errors.New("insufficient role permissions")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionInactive    = errors.New("session is inactive")
	ErrSessionLocked      = errors.New("session is locked")
	ErrSessionExpired     = errors.New("session has expired")
	ErrRefreshCeiling     = errors.New("refresh lifetime exhausted")
	ErrRefreshReplayed    = errors.New("refresh token already used")
	ErrCredentialMismatch = errors.New("credential verification failed")
)

// Recovery errors.
var (
	ErrRecoveryNotFound      = errors.New("invalid id or not found")
	ErrRecoveryAlreadySetup  = errors.New("recovery already configured")
	ErrRecoveryLocked        = errors.New("too many recovery attempts")
	ErrRecoveryInvalidAnswer = errors.New("recovery answers did not match")
)

// Request matching errors.
var (
	ErrRequestNotFound   = errors.New("consultation request not found")
	ErrRequestPending    = errors.New("patient already has a pending request")
	ErrRequestFinalized  = errors.New("request already accepted, rejected, or expired")
	ErrRequestNotDue     = errors.New("request has not expired yet")
	ErrDoctorNotFound    = errors.New("doctor not found")
	ErrDoctorUnverified  = errors.New("doctor is not verified")
	ErrDoctorUnavailable = errors.New("doctor is not available")
	// ErrDoctorBusy is a soft conflict: the doctor is mid-consultation and
	// the caller should fall back to scheduled booking.
	ErrDoctorBusy = errors.New("doctor is in another consultation")
)

// Consultation engine errors.
var (
	ErrConsultationNotFound = errors.New("consultation not found")
	ErrNotParticipant       = errors.New("caller is not a participant")
	ErrInvalidTransition    = errors.New("invalid state for this action")
	ErrConsultationClosed   = errors.New("consultation already completed")
	ErrPaymentNotConfirmed  = errors.New("payment not confirmed")
	ErrStaleTransition      = errors.New("state changed concurrently")
)

// ErrUnknownAction is returned for an unrecognized action discriminator.
var ErrUnknownAction = errors.New("unknown action")

// ValidationError wraps a business-rule or input violation with a stable
// machine-readable code for the response envelope.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InsufficientAnswersError reports how many recovery answers matched so the
// caller sees "got N of M required" without learning which answers were
// wrong.
type InsufficientAnswersError struct {
	Got  int
	Need int
}

func (e *InsufficientAnswersError) Error() string {
	return fmt.Sprintf("got %d of %d required correct answers", e.Got, e.Need)
}

// RateLimitError carries the retry hint surfaced via the Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %s", e.RetryAfter)
}

// StateConflictError reports a lost optimistic-update race together with the
// authoritative current state so the caller can reconcile.
type StateConflictError struct {
	Current string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("state changed concurrently, current status is %s", e.Current)
}
