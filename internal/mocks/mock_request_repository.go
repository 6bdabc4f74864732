package mocks

import (
	"context"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// MockRequestRepository implements domain.RequestRepository interface for testing
type MockRequestRepository struct {
	CreateFunc               func(ctx context.Context, request *domain.ConsultationRequest) error
	FindByIDFunc             func(ctx context.Context, id string) (*domain.ConsultationRequest, error)
	FindPendingBySessionFunc func(ctx context.Context, sessionID string) (*domain.ConsultationRequest, error)
	TransitionFunc           func(ctx context.Context, id string, from, to domain.RequestStatus) error
}

// NewMockRequestRepository creates a new MockRequestRepository with default behaviors
func NewMockRequestRepository() *MockRequestRepository {
	return &MockRequestRepository{}
}

func (m *MockRequestRepository) Create(ctx context.Context, request *domain.ConsultationRequest) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, request)
	}
	return nil
}

func (m *MockRequestRepository) FindByID(ctx context.Context, id string) (*domain.ConsultationRequest, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, domain.ErrRequestNotFound
}

func (m *MockRequestRepository) FindPendingBySession(ctx context.Context, sessionID string) (*domain.ConsultationRequest, error) {
	if m.FindPendingBySessionFunc != nil {
		return m.FindPendingBySessionFunc(ctx, sessionID)
	}
	return nil, domain.ErrRequestNotFound
}

func (m *MockRequestRepository) Transition(ctx context.Context, id string, from, to domain.RequestStatus) error {
	if m.TransitionFunc != nil {
		return m.TransitionFunc(ctx, id, from, to)
	}
	return nil
}
