package mocks

import (
	"context"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// MockDoctorRepository implements domain.DoctorRepository interface for testing
type MockDoctorRepository struct {
	FindByIDFunc        func(ctx context.Context, id string) (*domain.Doctor, error)
	SetAvailabilityFunc func(ctx context.Context, id string, available bool) error
}

// NewMockDoctorRepository creates a new MockDoctorRepository with default behaviors
func NewMockDoctorRepository() *MockDoctorRepository {
	return &MockDoctorRepository{}
}

func (m *MockDoctorRepository) FindByID(ctx context.Context, id string) (*domain.Doctor, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, domain.ErrDoctorNotFound
}

func (m *MockDoctorRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	if m.SetAvailabilityFunc != nil {
		return m.SetAvailabilityFunc(ctx, id, available)
	}
	return nil
}
