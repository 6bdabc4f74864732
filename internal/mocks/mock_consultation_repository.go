package mocks

import (
	"context"
	"time"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// MockConsultationRepository implements domain.ConsultationRepository interface for testing
type MockConsultationRepository struct {
	FindByIDFunc          func(ctx context.Context, id string) (*domain.Consultation, error)
	FindOpenByPatientFunc func(ctx context.Context, sessionID string) (*domain.Consultation, error)
	FindOpenByDoctorFunc  func(ctx context.Context, doctorID string) (*domain.Consultation, error)
	AcceptRequestFunc     func(ctx context.Context, request *domain.ConsultationRequest, consultation *domain.Consultation) error
	TransitionFunc        func(ctx context.Context, id string, from, to domain.ConsultationStatus) error
	EnterGraceFunc        func(ctx context.Context, id string, graceEndsAt time.Time) error
	CancelGraceFunc       func(ctx context.Context, id string) error
	ApplyExtensionFunc    func(ctx context.Context, id string, newScheduledEnd time.Time) error
	CompleteFunc          func(ctx context.Context, id string) error
	AppendTranscriptFunc  func(ctx context.Context, entry *domain.TranscriptEntry) error
	TranscriptFunc        func(ctx context.Context, consultationID string) ([]domain.TranscriptEntry, error)
}

// NewMockConsultationRepository creates a new MockConsultationRepository with default behaviors
func NewMockConsultationRepository() *MockConsultationRepository {
	return &MockConsultationRepository{}
}

func (m *MockConsultationRepository) FindByID(ctx context.Context, id string) (*domain.Consultation, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, domain.ErrConsultationNotFound
}

func (m *MockConsultationRepository) FindOpenByPatient(ctx context.Context, sessionID string) (*domain.Consultation, error) {
	if m.FindOpenByPatientFunc != nil {
		return m.FindOpenByPatientFunc(ctx, sessionID)
	}
	return nil, domain.ErrConsultationNotFound
}

func (m *MockConsultationRepository) FindOpenByDoctor(ctx context.Context, doctorID string) (*domain.Consultation, error) {
	if m.FindOpenByDoctorFunc != nil {
		return m.FindOpenByDoctorFunc(ctx, doctorID)
	}
	return nil, domain.ErrConsultationNotFound
}

func (m *MockConsultationRepository) AcceptRequest(ctx context.Context, request *domain.ConsultationRequest, consultation *domain.Consultation) error {
	if m.AcceptRequestFunc != nil {
		return m.AcceptRequestFunc(ctx, request, consultation)
	}
	return nil
}

func (m *MockConsultationRepository) Transition(ctx context.Context, id string, from, to domain.ConsultationStatus) error {
	if m.TransitionFunc != nil {
		return m.TransitionFunc(ctx, id, from, to)
	}
	return nil
}

func (m *MockConsultationRepository) EnterGrace(ctx context.Context, id string, graceEndsAt time.Time) error {
	if m.EnterGraceFunc != nil {
		return m.EnterGraceFunc(ctx, id, graceEndsAt)
	}
	return nil
}

func (m *MockConsultationRepository) CancelGrace(ctx context.Context, id string) error {
	if m.CancelGraceFunc != nil {
		return m.CancelGraceFunc(ctx, id)
	}
	return nil
}

func (m *MockConsultationRepository) ApplyExtension(ctx context.Context, id string, newScheduledEnd time.Time) error {
	if m.ApplyExtensionFunc != nil {
		return m.ApplyExtensionFunc(ctx, id, newScheduledEnd)
	}
	return nil
}

func (m *MockConsultationRepository) Complete(ctx context.Context, id string) error {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, id)
	}
	return nil
}

func (m *MockConsultationRepository) AppendTranscript(ctx context.Context, entry *domain.TranscriptEntry) error {
	if m.AppendTranscriptFunc != nil {
		return m.AppendTranscriptFunc(ctx, entry)
	}
	return nil
}

func (m *MockConsultationRepository) Transcript(ctx context.Context, consultationID string) ([]domain.TranscriptEntry, error) {
	if m.TranscriptFunc != nil {
		return m.TranscriptFunc(ctx, consultationID)
	}
	return nil, nil
}
