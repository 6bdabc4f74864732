package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// RequestRepositoryImpl implements domain.RequestRepository using GORM. All
// status transitions are conditional updates guarded on the prior status so
// a transition out of pending happens exactly once.
type RequestRepositoryImpl struct {
	db *gorm.DB
}

// DBConsultationRequest represents the database model for ConsultationRequest
type DBConsultationRequest struct {
	ID               string `gorm:"primaryKey;size:64"`
	PatientSessionID string `gorm:"index;size:64"`
	DoctorID         string `gorm:"index;size:64"`
	ServiceType      string `gorm:"size:64"`
	Status           string `gorm:"index;size:16"`
	ExpiresAt        time.Time
	ConsultationID   string `gorm:"size:64"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName returns the table name for GORM
func (DBConsultationRequest) TableName() string {
	return "consultation_requests"
}

// NewRequestRepository creates a new consultation request repository
func NewRequestRepository(db *gorm.DB) domain.RequestRepository {
	return &RequestRepositoryImpl{db: db}
}

// Create implements domain.RequestRepository
func (r *RequestRepositoryImpl) Create(ctx context.Context, request *domain.ConsultationRequest) error {
	return r.db.WithContext(ctx).Create(requestDomainToDB(request)).Error
}

// FindByID implements domain.RequestRepository
func (r *RequestRepositoryImpl) FindByID(ctx context.Context, id string) (*domain.ConsultationRequest, error) {
	var dbRequest DBConsultationRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&dbRequest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, err
	}
	return requestDBToDomain(&dbRequest), nil
}

// FindPendingBySession implements domain.RequestRepository. Expiry is not
// filtered here: the caller decides whether a stale pending row should be
// flipped to expired first.
func (r *RequestRepositoryImpl) FindPendingBySession(ctx context.Context, sessionID string) (*domain.ConsultationRequest, error) {
	var dbRequest DBConsultationRequest
	err := r.db.WithContext(ctx).
		Where("patient_session_id = ? AND status = ?", sessionID, string(domain.RequestPending)).
		Order("created_at DESC").
		First(&dbRequest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, err
	}
	return requestDBToDomain(&dbRequest), nil
}

// Transition implements domain.RequestRepository
func (r *RequestRepositoryImpl) Transition(ctx context.Context, id string, from, to domain.RequestStatus) error {
	res := r.db.WithContext(ctx).Model(&DBConsultationRequest{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrStaleTransition
	}
	return nil
}

func requestDomainToDB(request *domain.ConsultationRequest) *DBConsultationRequest {
	return &DBConsultationRequest{
		ID:               request.ID,
		PatientSessionID: request.PatientSessionID,
		DoctorID:         request.DoctorID,
		ServiceType:      request.ServiceType,
		Status:           string(request.Status),
		ExpiresAt:        request.ExpiresAt,
		ConsultationID:   request.ConsultationID,
	}
}

func requestDBToDomain(dbRequest *DBConsultationRequest) *domain.ConsultationRequest {
	return &domain.ConsultationRequest{
		ID:               dbRequest.ID,
		PatientSessionID: dbRequest.PatientSessionID,
		DoctorID:         dbRequest.DoctorID,
		ServiceType:      dbRequest.ServiceType,
		Status:           domain.RequestStatus(dbRequest.Status),
		CreatedAt:        dbRequest.CreatedAt,
		ExpiresAt:        dbRequest.ExpiresAt,
		ConsultationID:   dbRequest.ConsultationID,
	}
}
