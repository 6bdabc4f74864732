package domain

import (
	"context"
	"time"
)

// SessionRepository defines patient session data access operations.
type SessionRepository interface {
	Create(ctx context.Context, session *PatientSession) error
	FindByID(ctx context.Context, id string) (*PatientSession, error)
	FindByRecoveryIDHash(ctx context.Context, hash string) (*PatientSession, error)
	// FastHashExists reports whether any session row already carries the
	// given fast lookup hash in either secret column.
	FastHashExists(ctx context.Context, hash string) (bool, error)
	// RotateSecrets conditionally replaces both secret hash pairs, keyed on
	// the refresh hash being unchanged since read. Zero rows affected means
	// the refresh secret was already consumed and ErrRefreshReplayed is
	// returned.
	RotateSecrets(ctx context.Context, sessionID, expectedRefreshHash string, rotated RotatedSecrets) error
	// Reissue replaces both secret hash pairs unconditionally and
	// reactivates the session. Used by the recovery paths.
	Reissue(ctx context.Context, sessionID string, rotated RotatedSecrets, refreshExpiresAt time.Time) error
	Deactivate(ctx context.Context, sessionID string) error
	TouchLastSeen(ctx context.Context, sessionID string) error
	// SaveRecoverySetup persists the five answer hashes and the recovery
	// identifier in one transaction and marks the session recovery-ready.
	SaveRecoverySetup(ctx context.Context, sessionID, recoveryID, recoveryIDHash string, questions []RecoveryQuestion) error
	RecoveryQuestions(ctx context.Context, sessionID string) ([]RecoveryQuestion, error)
}

// DoctorRepository exposes the read surface the matcher needs plus the
// availability flip performed around a consultation's lifetime.
type DoctorRepository interface {
	FindByID(ctx context.Context, id string) (*Doctor, error)
	SetAvailability(ctx context.Context, id string, available bool) error
}

// RequestRepository defines consultation request data access. All status
// transitions are conditional updates guarded on the prior status.
type RequestRepository interface {
	Create(ctx context.Context, request *ConsultationRequest) error
	FindByID(ctx context.Context, id string) (*ConsultationRequest, error)
	FindPendingBySession(ctx context.Context, sessionID string) (*ConsultationRequest, error)
	// Transition flips status from->to iff the row still holds from.
	// ErrStaleTransition is returned on a lost race.
	Transition(ctx context.Context, id string, from, to RequestStatus) error
}

// ConsultationRepository defines consultation data access including the
// combined accept transaction and all timed state machine transitions.
type ConsultationRepository interface {
	FindByID(ctx context.Context, id string) (*Consultation, error)
	FindOpenByPatient(ctx context.Context, sessionID string) (*Consultation, error)
	FindOpenByDoctor(ctx context.Context, doctorID string) (*Consultation, error)
	// AcceptRequest executes the atomic accept: close any stale open
	// consultation for the patient, insert the new consultation, mark the
	// doctor busy, and stamp the request accepted - all inside one
	// transaction, guarded on the request still being pending.
	AcceptRequest(ctx context.Context, request *ConsultationRequest, consultation *Consultation) error
	// Transition flips status from->to iff the row still holds from.
	Transition(ctx context.Context, id string, from, to ConsultationStatus) error
	// EnterGrace moves awaiting_extension -> grace_period stamping the
	// grace deadline.
	EnterGrace(ctx context.Context, id string, graceEndsAt time.Time) error
	// CancelGrace moves grace_period -> awaiting_extension clearing the
	// grace deadline.
	CancelGrace(ctx context.Context, id string) error
	// ApplyExtension moves grace_period -> active, increments the extension
	// count, extends the scheduled end, and clears the grace deadline, all
	// in one conditional update.
	ApplyExtension(ctx context.Context, id string, newScheduledEnd time.Time) error
	// Complete moves any non-completed status to completed and frees the
	// doctor in the same transaction.
	Complete(ctx context.Context, id string) error
	AppendTranscript(ctx context.Context, entry *TranscriptEntry) error
	Transcript(ctx context.Context, consultationID string) ([]TranscriptEntry, error)
}

// SecretHasher implements the two-tier hash-then-verify pattern: a fast
// deterministic hash for indexed lookup and a slow salted KDF for
// timing-safe comparison. Both layers are deliberate defense-in-depth.
type SecretHasher interface {
	FastHash(secret string) string
	// SlowHash derives a self-contained digest with an embedded fresh salt.
	SlowHash(secret string) (string, error)
	SlowCompare(encoded, secret string) bool
	// NewSalt and the WithSalt pair serve rows that store hash and salt in
	// separate columns, like recovery answers.
	NewSalt() (string, error)
	SlowHashWithSalt(secret, salt string) string
	SlowCompareWithSalt(digest, salt, secret string) bool
}

// CredentialSigner mints the signed patient session credential. The rest of
// the system stays ignorant of the exact encoding.
type CredentialSigner interface {
	SignSessionToken(sessionID, accessSecret string, expiresAt time.Time) (string, error)
}

// CredentialVerifier validates an inbound bearer credential, classifying the
// caller as an anonymous patient session or an authenticated staff identity.
// Every failure surfaces as ErrUnauthorized.
type CredentialVerifier interface {
	Verify(ctx context.Context, bearer string) (*Caller, error)
}

// IdentityProvider validates opaque staff credentials against the external
// identity platform and resolves a role.
type IdentityProvider interface {
	Validate(ctx context.Context, token string) (*StaffIdentity, error)
}

// TokenService issues and refreshes anonymous patient sessions.
type TokenService interface {
	CreateSession(ctx context.Context) (*TokenBundle, error)
	Refresh(ctx context.Context, sessionID, refreshToken string) (*TokenBundle, error)
}

// RecoveryService re-issues session credentials via the public recovery
// identifier or the secret question threshold, under brute-force protection.
type RecoveryService interface {
	Setup(ctx context.Context, sessionID string, answers map[string]string) (recoveryID string, err error)
	RecoverByID(ctx context.Context, recoveryID, origin string) (*TokenBundle, error)
	// RecoverByQuestions returns the token bundle plus the public recovery
	// identifier as a reminder.
	RecoverByQuestions(ctx context.Context, recoveryID string, answers map[string]string, origin string) (*TokenBundle, string, error)
}

// RecoveryGuard is the shared brute-force lock for both recovery paths,
// keyed by identifier hash and caller network origin.
type RecoveryGuard interface {
	CheckLocked(ctx context.Context, idHash, origin string) error
	RecordAttempt(ctx context.Context, idHash, origin string, success bool) error
}

// MatcherService is the consultation request state machine.
type MatcherService interface {
	Create(ctx context.Context, caller Caller, doctorID, serviceType string) (*ConsultationRequest, error)
	Accept(ctx context.Context, caller Caller, requestID string) (*Consultation, error)
	Reject(ctx context.Context, caller Caller, requestID string) (*ConsultationRequest, error)
	Expire(ctx context.Context, caller Caller, requestID string) (*ConsultationRequest, error)
	Status(ctx context.Context, caller Caller, requestID string) (*ConsultationRequest, error)
}

// ConsultationService is the timed consultation state machine.
type ConsultationService interface {
	Sync(ctx context.Context, caller Caller, consultationID string) (*ConsultationState, error)
	End(ctx context.Context, caller Caller, consultationID string) (*ConsultationState, error)
	TimerExpired(ctx context.Context, caller Caller, consultationID string) (*ConsultationState, error)
	RequestExtension(ctx context.Context, caller Caller, consultationID string) (*ConsultationState, error)
	AcceptExtension(ctx context.Context, caller Caller, consultationID string) (*ConsultationState, error)
	DeclineExtension(ctx context.Context, caller Caller, consultationID string) (*ConsultationState, error)
	PaymentConfirmed(ctx context.Context, caller Caller, consultationID, paymentID string) (*ConsultationState, error)
	CancelPayment(ctx context.Context, caller Caller, consultationID string) (*ConsultationState, error)
}

// RateLimiter is sliding-window admission control shared by every handler.
// Implementations fail open: a backend error yields an allow decision.
type RateLimiter interface {
	Allow(ctx context.Context, callerKey string, class LimitClass) (*RateLimitDecision, error)
}

// Notifier is the external push contract. Delivery failure must never fail
// the state transition that triggered it.
type Notifier interface {
	NotifyDoctor(ctx context.Context, doctorID, title, body string) error
	NotifyPatient(ctx context.Context, sessionID, title, body string) error
}

// PaymentGateway abstracts the external payment provider. InitiateExtension
// is idempotent per (consultationID, extension ordinal).
type PaymentGateway interface {
	InitiateExtension(ctx context.Context, consultationID string, amount int64) (paymentID string, err error)
	VerifyPayment(ctx context.Context, paymentID string) (PaymentStatus, error)
}

// Clock abstracts time so tests can advance it deterministically.
type Clock interface {
	Now() time.Time
}

// Scheduler runs a task after a delay without blocking the caller. Replaces
// ambient timers so tests control time.
type Scheduler interface {
	Schedule(delay time.Duration, task func())
}

// PolicyService manages route authorization policies for staff roles.
type PolicyService interface {
	AddPolicy(role, resource, action string) error
	RemovePolicy(role, resource, action string) error
	CheckPermission(role, resource, action string) (bool, error)
	GetPolicies() [][]string
}

// PolicyEnforcer is the subset of the policy engine the middleware needs.
type PolicyEnforcer interface {
	AddPolicy(params ...interface{}) (bool, error)
	RemovePolicy(params ...interface{}) (bool, error)
	Enforce(rvals ...interface{}) (bool, error)
	GetPolicy() ([][]string, error)
	SavePolicy() error
}
