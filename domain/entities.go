package domain

import "time"

// PatientSession represents an anonymous, recoverable patient identity.
// Only hashes of the access/refresh secrets are ever stored: a fast SHA-256
// hash used for indexed lookup and a slow salted KDF digest used for
// timing-safe verification.
type PatientSession struct {
	ID                    string
	AccessTokenHash       string
	AccessTokenVerifier   string
	RefreshTokenHash      string
	RefreshTokenVerifier  string
	PublicRecoveryID      string
	PublicRecoveryIDHash  string
	IsActive              bool
	IsLocked              bool
	AccessExpiresAt       time.Time
	RefreshExpiresAt      time.Time
	RecoverySetupComplete bool
	CreatedAt             time.Time
	LastSeenAt            time.Time
}

// RecoveryQuestionKeys is the fixed set of keys a patient may answer during
// recovery setup. Exactly RecoveryAnswerCount distinct keys must be chosen.
var RecoveryQuestionKeys = []string{
	"first_pet_name",
	"birth_city",
	"mother_maiden_name",
	"favorite_food",
	"childhood_friend",
	"first_school",
	"favorite_teacher",
	"memorable_year",
}

const (
	// RecoveryAnswerCount is the number of answers stored at setup.
	RecoveryAnswerCount = 5
	// RecoveryAnswerThreshold is the minimum number of correct answers
	// required to recover a session by questions.
	RecoveryAnswerThreshold = 3
)

// RecoveryQuestion is one stored recovery answer for a session. Each answer
// is normalized (lowercased, trimmed) and hashed with its own salt.
type RecoveryQuestion struct {
	ID          uint
	SessionID   string
	QuestionKey string
	AnswerHash  string
	AnswerSalt  string
	CreatedAt   time.Time
}

// RequestStatus enumerates consultation request states. Every transition out
// of pending is terminal.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
	RequestExpired  RequestStatus = "expired"
)

// ConsultationRequest is the ephemeral record pairing a patient with a
// doctor under a fixed TTL.
type ConsultationRequest struct {
	ID               string
	PatientSessionID string
	DoctorID         string
	ServiceType      string
	Status           RequestStatus
	CreatedAt        time.Time
	ExpiresAt        time.Time
	ConsultationID   string
}

// Expired reports whether the request TTL has elapsed at the given instant.
func (r *ConsultationRequest) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// ConsultationStatus enumerates live consultation states.
type ConsultationStatus string

const (
	ConsultationActive            ConsultationStatus = "active"
	ConsultationAwaitingExtension ConsultationStatus = "awaiting_extension"
	ConsultationGracePeriod       ConsultationStatus = "grace_period"
	ConsultationCompleted         ConsultationStatus = "completed"
)

// Consultation is a live doctor-patient session driven by the timed state
// machine. A patient has at most one non-completed consultation at any time.
type Consultation struct {
	ID                      string
	PatientSessionID        string
	DoctorID                string
	ServiceType             string
	ConsultationFee         int64
	Status                  ConsultationStatus
	ScheduledEndAt          time.Time
	GracePeriodEndAt        *time.Time
	ExtensionCount          int
	OriginalDurationMinutes int
	SessionStartTime        time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Open reports whether the consultation still occupies the patient's single
// open-consultation slot.
func (c *Consultation) Open() bool {
	return c.Status != ConsultationCompleted
}

// IsParticipant reports whether the caller is one of the two parties.
func (c *Consultation) IsParticipant(caller Caller) bool {
	switch caller.Kind {
	case CallerPatient:
		return caller.SessionID == c.PatientSessionID
	case CallerStaff:
		return caller.StaffID == c.DoctorID
	}
	return false
}

// TranscriptEntry is a system marker written into the shared message log on
// every consultation transition so the chat history explains itself.
type TranscriptEntry struct {
	ID             uint
	ConsultationID string
	Kind           string
	Body           string
	CreatedAt      time.Time
}

// TranscriptKindSystem marks server-generated transcript entries.
const TranscriptKindSystem = "system_marker"

// Doctor is the read-mostly staff record the matcher consults. Doctor
// profiles are managed by the back office; this service only reads them and
// flips availability around a consultation's lifetime.
type Doctor struct {
	ID            string
	DisplayName   string
	ContactNumber string
	IsVerified    bool
	IsAvailable   bool
}

// CallerKind tags a verified caller identity.
type CallerKind string

const (
	CallerPatient CallerKind = "patient"
	CallerStaff   CallerKind = "staff"
)

// Caller is the identity resolved by the credential verifier. Exactly one of
// SessionID (patient) or StaffID (staff) is set.
type Caller struct {
	Kind      CallerKind
	SessionID string
	StaffID   string
	Role      string
	Origin    string
}

// RateLimitKey returns the identity component of the caller's rate-limit key.
func (c Caller) RateLimitKey() string {
	if c.Kind == CallerPatient {
		return "sess:" + c.SessionID
	}
	return "staff:" + c.StaffID
}

// StaffIdentity is what the external identity provider resolves for a
// staff/doctor credential.
type StaffIdentity struct {
	ID   string
	Name string
	Role string
}

// TokenBundle carries freshly issued session credentials. The cleartext
// secrets appear here exactly once and are never persisted.
type TokenBundle struct {
	SessionID        string
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        int64
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// RotatedSecrets is the hash set written to a session row when its secrets
// are created, refreshed, or re-issued by recovery.
type RotatedSecrets struct {
	AccessTokenHash      string
	AccessTokenVerifier  string
	RefreshTokenHash     string
	RefreshTokenVerifier string
	AccessExpiresAt      time.Time
}

// PaymentStatus enumerates payment gateway outcomes.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// ConsultationState is the snapshot returned by every consultation engine
// operation, including an authoritative server clock so clients can
// reconcile local countdowns without trusting their own.
type ConsultationState struct {
	Consultation *Consultation
	ServerTime   time.Time
	// PaymentID is set when the snapshot opens or continues a grace-period
	// payment window.
	PaymentID string
}

// RateLimitDecision is the rate limiter verdict for one call.
type RateLimitDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// LimitClass groups operations sharing a rate-limit budget.
type LimitClass string

const (
	LimitClassMutate   LimitClass = "mutate"
	LimitClassRecovery LimitClass = "recovery"
	LimitClassRead     LimitClass = "read"
)
