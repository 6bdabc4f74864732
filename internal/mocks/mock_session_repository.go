package mocks

import (
	"context"
	"time"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// MockSessionRepository implements domain.SessionRepository interface for testing
type MockSessionRepository struct {
	CreateFunc               func(ctx context.Context, session *domain.PatientSession) error
	FindByIDFunc             func(ctx context.Context, id string) (*domain.PatientSession, error)
	FindByRecoveryIDHashFunc func(ctx context.Context, hash string) (*domain.PatientSession, error)
	FastHashExistsFunc       func(ctx context.Context, hash string) (bool, error)
	RotateSecretsFunc        func(ctx context.Context, sessionID, expectedRefreshHash string, rotated domain.RotatedSecrets) error
	ReissueFunc              func(ctx context.Context, sessionID string, rotated domain.RotatedSecrets, refreshExpiresAt time.Time) error
	DeactivateFunc           func(ctx context.Context, sessionID string) error
	TouchLastSeenFunc        func(ctx context.Context, sessionID string) error
	SaveRecoverySetupFunc    func(ctx context.Context, sessionID, recoveryID, recoveryIDHash string, questions []domain.RecoveryQuestion) error
	RecoveryQuestionsFunc    func(ctx context.Context, sessionID string) ([]domain.RecoveryQuestion, error)
}

// NewMockSessionRepository creates a new MockSessionRepository with default behaviors
func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{}
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.PatientSession) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	return nil
}

func (m *MockSessionRepository) FindByID(ctx context.Context, id string) (*domain.PatientSession, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	// Default behavior: not found
	return nil, domain.ErrSessionNotFound
}

func (m *MockSessionRepository) FindByRecoveryIDHash(ctx context.Context, hash string) (*domain.PatientSession, error) {
	if m.FindByRecoveryIDHashFunc != nil {
		return m.FindByRecoveryIDHashFunc(ctx, hash)
	}
	return nil, domain.ErrSessionNotFound
}

func (m *MockSessionRepository) FastHashExists(ctx context.Context, hash string) (bool, error) {
	if m.FastHashExistsFunc != nil {
		return m.FastHashExistsFunc(ctx, hash)
	}
	return false, nil
}

func (m *MockSessionRepository) RotateSecrets(ctx context.Context, sessionID, expectedRefreshHash string, rotated domain.RotatedSecrets) error {
	if m.RotateSecretsFunc != nil {
		return m.RotateSecretsFunc(ctx, sessionID, expectedRefreshHash, rotated)
	}
	return nil
}

func (m *MockSessionRepository) Reissue(ctx context.Context, sessionID string, rotated domain.RotatedSecrets, refreshExpiresAt time.Time) error {
	if m.ReissueFunc != nil {
		return m.ReissueFunc(ctx, sessionID, rotated, refreshExpiresAt)
	}
	return nil
}

func (m *MockSessionRepository) Deactivate(ctx context.Context, sessionID string) error {
	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockSessionRepository) TouchLastSeen(ctx context.Context, sessionID string) error {
	if m.TouchLastSeenFunc != nil {
		return m.TouchLastSeenFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockSessionRepository) SaveRecoverySetup(ctx context.Context, sessionID, recoveryID, recoveryIDHash string, questions []domain.RecoveryQuestion) error {
	if m.SaveRecoverySetupFunc != nil {
		return m.SaveRecoverySetupFunc(ctx, sessionID, recoveryID, recoveryIDHash, questions)
	}
	return nil
}

func (m *MockSessionRepository) RecoveryQuestions(ctx context.Context, sessionID string) ([]domain.RecoveryQuestion, error) {
	if m.RecoveryQuestionsFunc != nil {
		return m.RecoveryQuestionsFunc(ctx, sessionID)
	}
	return nil, nil
}
