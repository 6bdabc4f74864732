package mocks

import (
	"context"
	"sync"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// MockNotifier implements domain.Notifier and records deliveries for assertions.
type MockNotifier struct {
	mu                sync.Mutex
	NotifyDoctorFunc  func(ctx context.Context, doctorID, title, body string) error
	NotifyPatientFunc func(ctx context.Context, sessionID, title, body string) error
	DoctorDeliveries  []string
	PatientDeliveries []string
}

// NewMockNotifier creates a new MockNotifier with default behaviors
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) NotifyDoctor(ctx context.Context, doctorID, title, body string) error {
	if m.NotifyDoctorFunc != nil {
		return m.NotifyDoctorFunc(ctx, doctorID, title, body)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DoctorDeliveries = append(m.DoctorDeliveries, doctorID+": "+title)
	return nil
}

func (m *MockNotifier) NotifyPatient(ctx context.Context, sessionID, title, body string) error {
	if m.NotifyPatientFunc != nil {
		return m.NotifyPatientFunc(ctx, sessionID, title, body)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PatientDeliveries = append(m.PatientDeliveries, sessionID+": "+title)
	return nil
}

// MockAuditSink implements domain.AuditSink and collects recorded events.
type MockAuditSink struct {
	mu     sync.Mutex
	Events []*domain.AuditEvent
}

// NewMockAuditSink creates a new MockAuditSink
func NewMockAuditSink() *MockAuditSink {
	return &MockAuditSink{}
}

func (m *MockAuditSink) Record(event *domain.AuditEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

// Types returns the recorded event types in order.
func (m *MockAuditSink) Types() []domain.AuditEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]domain.AuditEventType, 0, len(m.Events))
	for _, e := range m.Events {
		types = append(types, e.EventType)
	}
	return types
}

// MockPaymentGateway implements domain.PaymentGateway interface for testing
type MockPaymentGateway struct {
	InitiateExtensionFunc func(ctx context.Context, consultationID string, amount int64) (string, error)
	VerifyPaymentFunc     func(ctx context.Context, paymentID string) (domain.PaymentStatus, error)
}

// NewMockPaymentGateway creates a new MockPaymentGateway with default behaviors
func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{}
}

func (m *MockPaymentGateway) InitiateExtension(ctx context.Context, consultationID string, amount int64) (string, error) {
	if m.InitiateExtensionFunc != nil {
		return m.InitiateExtensionFunc(ctx, consultationID, amount)
	}
	return "pay_" + consultationID, nil
}

func (m *MockPaymentGateway) VerifyPayment(ctx context.Context, paymentID string) (domain.PaymentStatus, error) {
	if m.VerifyPaymentFunc != nil {
		return m.VerifyPaymentFunc(ctx, paymentID)
	}
	return domain.PaymentSucceeded, nil
}

// MockRateLimiter implements domain.RateLimiter interface for testing
type MockRateLimiter struct {
	AllowFunc func(ctx context.Context, callerKey string, class domain.LimitClass) (*domain.RateLimitDecision, error)
}

// NewMockRateLimiter creates a new MockRateLimiter that allows everything
func NewMockRateLimiter() *MockRateLimiter {
	return &MockRateLimiter{}
}

func (m *MockRateLimiter) Allow(ctx context.Context, callerKey string, class domain.LimitClass) (*domain.RateLimitDecision, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, callerKey, class)
	}
	return &domain.RateLimitDecision{Allowed: true, Remaining: 1}, nil
}

// MockRecoveryGuard implements domain.RecoveryGuard interface for testing
type MockRecoveryGuard struct {
	CheckLockedFunc   func(ctx context.Context, idHash, origin string) error
	RecordAttemptFunc func(ctx context.Context, idHash, origin string, success bool) error
}

// NewMockRecoveryGuard creates a new MockRecoveryGuard with default behaviors
func NewMockRecoveryGuard() *MockRecoveryGuard {
	return &MockRecoveryGuard{}
}

func (m *MockRecoveryGuard) CheckLocked(ctx context.Context, idHash, origin string) error {
	if m.CheckLockedFunc != nil {
		return m.CheckLockedFunc(ctx, idHash, origin)
	}
	return nil
}

func (m *MockRecoveryGuard) RecordAttempt(ctx context.Context, idHash, origin string, success bool) error {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, idHash, origin, success)
	}
	return nil
}

// MockIdentityProvider implements domain.IdentityProvider interface for testing
type MockIdentityProvider struct {
	ValidateFunc func(ctx context.Context, token string) (*domain.StaffIdentity, error)
}

// NewMockIdentityProvider creates a new MockIdentityProvider with default behaviors
func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{}
}

func (m *MockIdentityProvider) Validate(ctx context.Context, token string) (*domain.StaffIdentity, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, token)
	}
	return nil, domain.ErrUnauthorized
}
