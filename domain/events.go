package domain

import "time"

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Session lifecycle events
	SessionCreatedEvent   AuditEventType = "SESSION_CREATED"
	SessionRefreshedEvent AuditEventType = "SESSION_REFRESHED"
	RefreshRejectedEvent  AuditEventType = "REFRESH_REJECTED"
	SessionExpiredEvent   AuditEventType = "SESSION_EXPIRED"

	// Recovery events
	RecoverySetupEvent     AuditEventType = "RECOVERY_SETUP"
	RecoverySucceededEvent AuditEventType = "RECOVERY_SUCCEEDED"
	RecoveryFailedEvent    AuditEventType = "RECOVERY_FAILED"
	RecoveryLockedEvent    AuditEventType = "RECOVERY_LOCKED"

	// Request matching events
	RequestCreatedEvent  AuditEventType = "REQUEST_CREATED"
	RequestAcceptedEvent AuditEventType = "REQUEST_ACCEPTED"
	RequestRejectedEvent AuditEventType = "REQUEST_REJECTED"
	RequestExpiredEvent  AuditEventType = "REQUEST_EXPIRED"

	// Consultation events
	ConsultationStartedEvent  AuditEventType = "CONSULTATION_STARTED"
	ConsultationEndedEvent    AuditEventType = "CONSULTATION_ENDED"
	ExtensionRequestedEvent   AuditEventType = "EXTENSION_REQUESTED"
	ExtensionAcceptedEvent    AuditEventType = "EXTENSION_ACCEPTED"
	ExtensionDeclinedEvent    AuditEventType = "EXTENSION_DECLINED"
	ExtensionPaidEvent        AuditEventType = "EXTENSION_PAID"
	ExtensionPaymentAbandoned AuditEventType = "EXTENSION_PAYMENT_ABANDONED"

	// Authorization events
	AccessDeniedEvent    AuditEventType = "ACCESS_DENIED"
	RateLimitStruckEvent AuditEventType = "RATE_LIMIT_STRUCK"
)

// AuditEvent is one append-only record. Failures that are deliberately vague
// to the caller carry their full detail here for operational review.
type AuditEvent struct {
	EventType      AuditEventType         `json:"event_type"`
	SessionID      string                 `json:"session_id,omitempty"`
	StaffID        string                 `json:"staff_id,omitempty"`
	RequestID      string                 `json:"request_id,omitempty"`
	ConsultationID string                 `json:"consultation_id,omitempty"`
	Origin         string                 `json:"origin,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Success        bool                   `json:"success"`
	ErrorMsg       string                 `json:"error_msg,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// AuditSink is the append-only event log consumed by every subsystem. Record
// is fire-and-forget: it never blocks the caller and never returns an error.
type AuditSink interface {
	Record(event *AuditEvent)
}
