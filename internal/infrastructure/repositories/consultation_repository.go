package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// ConsultationRepositoryImpl implements domain.ConsultationRepository using
// GORM. Every state machine transition is a conditional update keyed on the
// expected prior status; zero rows affected means a lost race.
type ConsultationRepositoryImpl struct {
	db *gorm.DB
}

// DBConsultation represents the database model for Consultation
type DBConsultation struct {
	ID                      string `gorm:"primaryKey;size:64"`
	PatientSessionID        string `gorm:"index;size:64"`
	DoctorID                string `gorm:"index;size:64"`
	ServiceType             string `gorm:"size:64"`
	ConsultationFee         int64
	Status                  string `gorm:"index;size:32"`
	ScheduledEndAt          time.Time
	GracePeriodEndAt        *time.Time
	ExtensionCount          int
	OriginalDurationMinutes int
	SessionStartTime        time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// TableName returns the table name for GORM
func (DBConsultation) TableName() string {
	return "consultations"
}

// DBTranscriptEntry represents the database model for TranscriptEntry
type DBTranscriptEntry struct {
	ID             uint   `gorm:"primaryKey"`
	ConsultationID string `gorm:"index;size:64"`
	Kind           string `gorm:"size:32"`
	Body           string `gorm:"size:512"`
	CreatedAt      time.Time
}

// TableName returns the table name for GORM
func (DBTranscriptEntry) TableName() string {
	return "consultation_messages"
}

// NewConsultationRepository creates a new consultation repository
func NewConsultationRepository(db *gorm.DB) domain.ConsultationRepository {
	return &ConsultationRepositoryImpl{db: db}
}

// FindByID implements domain.ConsultationRepository
func (r *ConsultationRepositoryImpl) FindByID(ctx context.Context, id string) (*domain.Consultation, error) {
	var dbConsultation DBConsultation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&dbConsultation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrConsultationNotFound
		}
		return nil, err
	}
	return consultationDBToDomain(&dbConsultation), nil
}

// FindOpenByPatient implements domain.ConsultationRepository
func (r *ConsultationRepositoryImpl) FindOpenByPatient(ctx context.Context, sessionID string) (*domain.Consultation, error) {
	var dbConsultation DBConsultation
	err := r.db.WithContext(ctx).
		Where("patient_session_id = ? AND status <> ?", sessionID, string(domain.ConsultationCompleted)).
		Order("created_at DESC").
		First(&dbConsultation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrConsultationNotFound
		}
		return nil, err
	}
	return consultationDBToDomain(&dbConsultation), nil
}

// FindOpenByDoctor implements domain.ConsultationRepository
func (r *ConsultationRepositoryImpl) FindOpenByDoctor(ctx context.Context, doctorID string) (*domain.Consultation, error) {
	var dbConsultation DBConsultation
	err := r.db.WithContext(ctx).
		Where("doctor_id = ? AND status <> ?", doctorID, string(domain.ConsultationCompleted)).
		Order("created_at DESC").
		First(&dbConsultation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrConsultationNotFound
		}
		return nil, err
	}
	return consultationDBToDomain(&dbConsultation), nil
}

// AcceptRequest implements domain.ConsultationRepository. The conditional
// request stamp runs first: if the row already left pending the whole
// transaction rolls back and the double-accept race resolves to exactly one
// winner. Stale open consultations for the patient are closed in the same
// transaction so a concurrent reader never sees two open rows.
func (r *ConsultationRepositoryImpl) AcceptRequest(ctx context.Context, request *domain.ConsultationRequest, consultation *domain.Consultation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&DBConsultationRequest{}).
			Where("id = ? AND status = ?", request.ID, string(domain.RequestPending)).
			Updates(map[string]interface{}{
				"status":          string(domain.RequestAccepted),
				"consultation_id": consultation.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrStaleTransition
		}

		if err := tx.Model(&DBConsultation{}).
			Where("patient_session_id = ? AND status <> ?", consultation.PatientSessionID, string(domain.ConsultationCompleted)).
			Update("status", string(domain.ConsultationCompleted)).Error; err != nil {
			return err
		}

		if err := tx.Create(consultationDomainToDB(consultation)).Error; err != nil {
			return err
		}

		return tx.Model(&DBDoctor{}).
			Where("id = ?", consultation.DoctorID).
			Update("is_available", false).Error
	})
}

// Transition implements domain.ConsultationRepository
func (r *ConsultationRepositoryImpl) Transition(ctx context.Context, id string, from, to domain.ConsultationStatus) error {
	res := r.db.WithContext(ctx).Model(&DBConsultation{}).
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

// EnterGrace implements domain.ConsultationRepository
func (r *ConsultationRepositoryImpl) EnterGrace(ctx context.Context, id string, graceEndsAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&DBConsultation{}).
		Where("id = ? AND status = ?", id, string(domain.ConsultationAwaitingExtension)).
		Updates(map[string]interface{}{
			"status":              string(domain.ConsultationGracePeriod),
			"grace_period_end_at": graceEndsAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrStaleTransition
	}
	return nil
}

// CancelGrace implements domain.ConsultationRepository
func (r *ConsultationRepositoryImpl) CancelGrace(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&DBConsultation{}).
		Where("id = ? AND status = ?", id, string(domain.ConsultationGracePeriod)).
		Updates(map[string]interface{}{
			"status":              string(domain.ConsultationAwaitingExtension),
			"grace_period_end_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrStaleTransition
	}
	return nil
}

// ApplyExtension implements domain.ConsultationRepository
func (r *ConsultationRepositoryImpl) ApplyExtension(ctx context.Context, id string, newScheduledEnd time.Time) error {
	res := r.db.WithContext(ctx).Model(&DBConsultation{}).
		Where("id = ? AND status = ?", id, string(domain.ConsultationGracePeriod)).
		Updates(map[string]interface{}{
			"status":              string(domain.ConsultationActive),
			"extension_count":     gorm.Expr("extension_count + 1"),
			"scheduled_end_at":    newScheduledEnd,
			"grace_period_end_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrStaleTransition
	}
	return nil
}

// Complete implements domain.ConsultationRepository. The doctor is freed in
// the same transaction that closes the consultation.
func (r *ConsultationRepositoryImpl) Complete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dbConsultation DBConsultation
		if err := tx.Where("id = ?", id).First(&dbConsultation).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrConsultationNotFound
			}
			return err
		}

		res := tx.Model(&DBConsultation{}).
			Where("id = ? AND status <> ?", id, string(domain.ConsultationCompleted)).
			Updates(map[string]interface{}{
				"status":              string(domain.ConsultationCompleted),
				"grace_period_end_at": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrStaleTransition
		}

		return tx.Model(&DBDoctor{}).
			Where("id = ?", dbConsultation.DoctorID).
			Update("is_available", true).Error
	})
}

// AppendTranscript implements domain.ConsultationRepository
func (r *ConsultationRepositoryImpl) AppendTranscript(ctx context.Context, entry *domain.TranscriptEntry) error {
	dbEntry := &DBTranscriptEntry{
		ConsultationID: entry.ConsultationID,
		Kind:           entry.Kind,
		Body:           entry.Body,
	}
	if err := r.db.WithContext(ctx).Create(dbEntry).Error; err != nil {
		return err
	}
	entry.ID = dbEntry.ID
	return nil
}

// Transcript implements domain.ConsultationRepository
func (r *ConsultationRepositoryImpl) Transcript(ctx context.Context, consultationID string) ([]domain.TranscriptEntry, error) {
	var dbEntries []DBTranscriptEntry
	err := r.db.WithContext(ctx).
		Where("consultation_id = ?", consultationID).
		Order("created_at ASC").
		Find(&dbEntries).Error
	if err != nil {
		return nil, err
	}
	entries := make([]domain.TranscriptEntry, 0, len(dbEntries))
	for _, e := range dbEntries {
		entries = append(entries, domain.TranscriptEntry{
			ID:             e.ID,
			ConsultationID: e.ConsultationID,
			Kind:           e.Kind,
			Body:           e.Body,
			CreatedAt:      e.CreatedAt,
		})
	}
	return entries, nil
}

func consultationDomainToDB(consultation *domain.Consultation) *DBConsultation {
	return &DBConsultation{
		ID:                      consultation.ID,
		PatientSessionID:        consultation.PatientSessionID,
		DoctorID:                consultation.DoctorID,
		ServiceType:             consultation.ServiceType,
		ConsultationFee:         consultation.ConsultationFee,
		Status:                  string(consultation.Status),
		ScheduledEndAt:          consultation.ScheduledEndAt,
		GracePeriodEndAt:        consultation.GracePeriodEndAt,
		ExtensionCount:          consultation.ExtensionCount,
		OriginalDurationMinutes: consultation.OriginalDurationMinutes,
		SessionStartTime:        consultation.SessionStartTime,
	}
}

func consultationDBToDomain(dbConsultation *DBConsultation) *domain.Consultation {
	return &domain.Consultation{
		ID:                      dbConsultation.ID,
		PatientSessionID:        dbConsultation.PatientSessionID,
		DoctorID:                dbConsultation.DoctorID,
		ServiceType:             dbConsultation.ServiceType,
		ConsultationFee:         dbConsultation.ConsultationFee,
		Status:                  domain.ConsultationStatus(dbConsultation.Status),
		ScheduledEndAt:          dbConsultation.ScheduledEndAt,
		GracePeriodEndAt:        dbConsultation.GracePeriodEndAt,
		ExtensionCount:          dbConsultation.ExtensionCount,
		OriginalDurationMinutes: dbConsultation.OriginalDurationMinutes,
		SessionStartTime:        dbConsultation.SessionStartTime,
		CreatedAt:               dbConsultation.CreatedAt,
		UpdatedAt:               dbConsultation.UpdatedAt,
	}
}
