package mocks

import (
	"context"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// MockTokenService implements domain.TokenService interface for testing
type MockTokenService struct {
	CreateSessionFunc func(ctx context.Context) (*domain.TokenBundle, error)
	RefreshFunc       func(ctx context.Context, sessionID, refreshToken string) (*domain.TokenBundle, error)
}

// NewMockTokenService creates a new MockTokenService with default behaviors
func NewMockTokenService() *MockTokenService {
	return &MockTokenService{}
}

func (m *MockTokenService) CreateSession(ctx context.Context) (*domain.TokenBundle, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx)
	}
	return &domain.TokenBundle{SessionID: "session-1", TokenType: "Bearer"}, nil
}

func (m *MockTokenService) Refresh(ctx context.Context, sessionID, refreshToken string) (*domain.TokenBundle, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, sessionID, refreshToken)
	}
	return nil, domain.ErrUnauthorized
}

// MockRecoveryService implements domain.RecoveryService interface for testing
type MockRecoveryService struct {
	SetupFunc              func(ctx context.Context, sessionID string, answers map[string]string) (string, error)
	RecoverByIDFunc        func(ctx context.Context, recoveryID, origin string) (*domain.TokenBundle, error)
	RecoverByQuestionsFunc func(ctx context.Context, recoveryID string, answers map[string]string, origin string) (*domain.TokenBundle, string, error)
}

// NewMockRecoveryService creates a new MockRecoveryService with default behaviors
func NewMockRecoveryService() *MockRecoveryService {
	return &MockRecoveryService{}
}

func (m *MockRecoveryService) Setup(ctx context.Context, sessionID string, answers map[string]string) (string, error) {
	if m.SetupFunc != nil {
		return m.SetupFunc(ctx, sessionID, answers)
	}
	return "AAAA-BBBB-CC", nil
}

func (m *MockRecoveryService) RecoverByID(ctx context.Context, recoveryID, origin string) (*domain.TokenBundle, error) {
	if m.RecoverByIDFunc != nil {
		return m.RecoverByIDFunc(ctx, recoveryID, origin)
	}
	return nil, domain.ErrRecoveryNotFound
}

func (m *MockRecoveryService) RecoverByQuestions(ctx context.Context, recoveryID string, answers map[string]string, origin string) (*domain.TokenBundle, string, error) {
	if m.RecoverByQuestionsFunc != nil {
		return m.RecoverByQuestionsFunc(ctx, recoveryID, answers, origin)
	}
	return nil, "", domain.ErrRecoveryNotFound
}

// MockMatcherService implements domain.MatcherService interface for testing
type MockMatcherService struct {
	CreateFunc func(ctx context.Context, caller domain.Caller, doctorID, serviceType string) (*domain.ConsultationRequest, error)
	AcceptFunc func(ctx context.Context, caller domain.Caller, requestID string) (*domain.Consultation, error)
	RejectFunc func(ctx context.Context, caller domain.Caller, requestID string) (*domain.ConsultationRequest, error)
	ExpireFunc func(ctx context.Context, caller domain.Caller, requestID string) (*domain.ConsultationRequest, error)
	StatusFunc func(ctx context.Context, caller domain.Caller, requestID string) (*domain.ConsultationRequest, error)
}

// NewMockMatcherService creates a new MockMatcherService with default behaviors
func NewMockMatcherService() *MockMatcherService {
	return &MockMatcherService{}
}

func (m *MockMatcherService) Create(ctx context.Context, caller domain.Caller, doctorID, serviceType string) (*domain.ConsultationRequest, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, caller, doctorID, serviceType)
	}
	return nil, domain.ErrDoctorNotFound
}

func (m *MockMatcherService) Accept(ctx context.Context, caller domain.Caller, requestID string) (*domain.Consultation, error) {
	if m.AcceptFunc != nil {
		return m.AcceptFunc(ctx, caller, requestID)
	}
	return nil, domain.ErrRequestNotFound
}

func (m *MockMatcherService) Reject(ctx context.Context, caller domain.Caller, requestID string) (*domain.ConsultationRequest, error) {
	if m.RejectFunc != nil {
		return m.RejectFunc(ctx, caller, requestID)
	}
	return nil, domain.ErrRequestNotFound
}

func (m *MockMatcherService) Expire(ctx context.Context, caller domain.Caller, requestID string) (*domain.ConsultationRequest, error) {
	if m.ExpireFunc != nil {
		return m.ExpireFunc(ctx, caller, requestID)
	}
	return nil, domain.ErrRequestNotFound
}

func (m *MockMatcherService) Status(ctx context.Context, caller domain.Caller, requestID string) (*domain.ConsultationRequest, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, caller, requestID)
	}
	return nil, domain.ErrRequestNotFound
}

// MockConsultationService implements domain.ConsultationService interface for testing
type MockConsultationService struct {
	SyncFunc             func(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error)
	EndFunc              func(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error)
	TimerExpiredFunc     func(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error)
	RequestExtensionFunc func(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error)
	AcceptExtensionFunc  func(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error)
	DeclineExtensionFunc func(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error)
	PaymentConfirmedFunc func(ctx context.Context, caller domain.Caller, consultationID, paymentID string) (*domain.ConsultationState, error)
	CancelPaymentFunc    func(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error)
}

// NewMockConsultationService creates a new MockConsultationService with default behaviors
func NewMockConsultationService() *MockConsultationService {
	return &MockConsultationService{}
}

func (m *MockConsultationService) Sync(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
	if m.SyncFunc != nil {
		return m.SyncFunc(ctx, caller, consultationID)
	}
	return nil, domain.ErrConsultationNotFound
}

func (m *MockConsultationService) End(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
	if m.EndFunc != nil {
		return m.EndFunc(ctx, caller, consultationID)
	}
	return nil, domain.ErrConsultationNotFound
}

func (m *MockConsultationService) TimerExpired(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
	if m.TimerExpiredFunc != nil {
		return m.TimerExpiredFunc(ctx, caller, consultationID)
	}
	return nil, domain.ErrConsultationNotFound
}

func (m *MockConsultationService) RequestExtension(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
	if m.RequestExtensionFunc != nil {
		return m.RequestExtensionFunc(ctx, caller, consultationID)
	}
	return nil, domain.ErrConsultationNotFound
}

func (m *MockConsultationService) AcceptExtension(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
	if m.AcceptExtensionFunc != nil {
		return m.AcceptExtensionFunc(ctx, caller, consultationID)
	}
	return nil, domain.ErrConsultationNotFound
}

func (m *MockConsultationService) DeclineExtension(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
	if m.DeclineExtensionFunc != nil {
		return m.DeclineExtensionFunc(ctx, caller, consultationID)
	}
	return nil, domain.ErrConsultationNotFound
}

func (m *MockConsultationService) PaymentConfirmed(ctx context.Context, caller domain.Caller, consultationID, paymentID string) (*domain.ConsultationState, error) {
	if m.PaymentConfirmedFunc != nil {
		return m.PaymentConfirmedFunc(ctx, caller, consultationID, paymentID)
	}
	return nil, domain.ErrConsultationNotFound
}

func (m *MockConsultationService) CancelPayment(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
	if m.CancelPaymentFunc != nil {
		return m.CancelPaymentFunc(ctx, caller, consultationID)
	}
	return nil, domain.ErrConsultationNotFound
}

// MockCredentialVerifier implements domain.CredentialVerifier interface for testing
type MockCredentialVerifier struct {
	VerifyFunc func(ctx context.Context, bearer string) (*domain.Caller, error)
}

// NewMockCredentialVerifier creates a new MockCredentialVerifier with default behaviors
func NewMockCredentialVerifier() *MockCredentialVerifier {
	return &MockCredentialVerifier{}
}

func (m *MockCredentialVerifier) Verify(ctx context.Context, bearer string) (*domain.Caller, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, bearer)
	}
	return nil, domain.ErrUnauthorized
}

// MockPolicyEnforcer implements domain.PolicyEnforcer interface for testing
type MockPolicyEnforcer struct {
	AddPolicyFunc    func(params ...interface{}) (bool, error)
	RemovePolicyFunc func(params ...interface{}) (bool, error)
	EnforceFunc      func(rvals ...interface{}) (bool, error)
	GetPolicyFunc    func() ([][]string, error)
	SavePolicyFunc   func() error
}

// NewMockPolicyEnforcer creates a new MockPolicyEnforcer that allows everything
func NewMockPolicyEnforcer() *MockPolicyEnforcer {
	return &MockPolicyEnforcer{}
}

func (m *MockPolicyEnforcer) AddPolicy(params ...interface{}) (bool, error) {
	if m.AddPolicyFunc != nil {
		return m.AddPolicyFunc(params...)
	}
	return true, nil
}

func (m *MockPolicyEnforcer) RemovePolicy(params ...interface{}) (bool, error) {
	if m.RemovePolicyFunc != nil {
		return m.RemovePolicyFunc(params...)
	}
	return true, nil
}

func (m *MockPolicyEnforcer) Enforce(rvals ...interface{}) (bool, error) {
	if m.EnforceFunc != nil {
		return m.EnforceFunc(rvals...)
	}
	return true, nil
}

func (m *MockPolicyEnforcer) GetPolicy() ([][]string, error) {
	if m.GetPolicyFunc != nil {
		return m.GetPolicyFunc()
	}
	return [][]string{}, nil
}

func (m *MockPolicyEnforcer) SavePolicy() error {
	if m.SavePolicyFunc != nil {
		return m.SavePolicyFunc()
	}
	return nil
}
