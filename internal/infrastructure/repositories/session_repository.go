package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// SessionRepositoryImpl implements domain.SessionRepository using GORM
type SessionRepositoryImpl struct {
	db *gorm.DB
}

// DBPatientSession represents the database model for PatientSession (with GORM tags)
type DBPatientSession struct {
	ID                    string `gorm:"primaryKey;size:64"`
	AccessTokenHash       string `gorm:"uniqueIndex;size:64"`
	AccessTokenVerifier   string `gorm:"size:255"`
	RefreshTokenHash      string `gorm:"uniqueIndex;size:64"`
	RefreshTokenVerifier  string `gorm:"size:255"`
	PublicRecoveryID      string `gorm:"size:32"`
	PublicRecoveryIDHash  string `gorm:"index;size:64"`
	IsActive              bool   `gorm:"index"`
	IsLocked              bool
	AccessExpiresAt       time.Time
	RefreshExpiresAt      time.Time
	RecoverySetupComplete bool
	CreatedAt             time.Time
	LastSeenAt            time.Time
	UpdatedAt             time.Time
}

// TableName returns the table name for GORM
func (DBPatientSession) TableName() string {
	return "patient_sessions"
}

// DBRecoveryQuestion represents the database model for RecoveryQuestion
type DBRecoveryQuestion struct {
	ID          uint   `gorm:"primaryKey"`
	SessionID   string `gorm:"index;size:64"`
	QuestionKey string `gorm:"size:64"`
	AnswerHash  string `gorm:"size:255"`
	AnswerSalt  string `gorm:"size:64"`
	CreatedAt   time.Time
}

// TableName returns the table name for GORM
func (DBRecoveryQuestion) TableName() string {
	return "recovery_questions"
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *gorm.DB) domain.SessionRepository {
	return &SessionRepositoryImpl{db: db}
}

// Create implements domain.SessionRepository
func (r *SessionRepositoryImpl) Create(ctx context.Context, session *domain.PatientSession) error {
	return r.db.WithContext(ctx).Create(r.domainToDB(session)).Error
}

// FindByID implements domain.SessionRepository
func (r *SessionRepositoryImpl) FindByID(ctx context.Context, id string) (*domain.PatientSession, error) {
	var dbSession DBPatientSession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&dbSession).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return r.dbToDomain(&dbSession), nil
}

// FindByRecoveryIDHash implements domain.SessionRepository
func (r *SessionRepositoryImpl) FindByRecoveryIDHash(ctx context.Context, hash string) (*domain.PatientSession, error) {
	var dbSession DBPatientSession
	err := r.db.WithContext(ctx).
		Where("public_recovery_id_hash = ? AND recovery_setup_complete = ?", hash, true).
		First(&dbSession).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return r.dbToDomain(&dbSession), nil
}

// FastHashExists implements domain.SessionRepository
func (r *SessionRepositoryImpl) FastHashExists(ctx context.Context, hash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&DBPatientSession{}).
		Where("access_token_hash = ? OR refresh_token_hash = ?", hash, hash).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// RotateSecrets implements domain.SessionRepository. The update is keyed on
// the refresh hash being unchanged since read, so of two concurrent refresh
// calls holding the same stale secret only the first to commit succeeds.
func (r *SessionRepositoryImpl) RotateSecrets(ctx context.Context, sessionID, expectedRefreshHash string, rotated domain.RotatedSecrets) error {
	res := r.db.WithContext(ctx).Model(&DBPatientSession{}).
		Where("id = ? AND refresh_token_hash = ? AND is_active = ?", sessionID, expectedRefreshHash, true).
		Updates(map[string]interface{}{
			"access_token_hash":      rotated.AccessTokenHash,
			"access_token_verifier":  rotated.AccessTokenVerifier,
			"refresh_token_hash":     rotated.RefreshTokenHash,
			"refresh_token_verifier": rotated.RefreshTokenVerifier,
			"access_expires_at":      rotated.AccessExpiresAt,
			"last_seen_at":           time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrRefreshReplayed
	}
	return nil
}

// Reissue implements domain.SessionRepository
func (r *SessionRepositoryImpl) Reissue(ctx context.Context, sessionID string, rotated domain.RotatedSecrets, refreshExpiresAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&DBPatientSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"access_token_hash":      rotated.AccessTokenHash,
			"access_token_verifier":  rotated.AccessTokenVerifier,
			"refresh_token_hash":     rotated.RefreshTokenHash,
			"refresh_token_verifier": rotated.RefreshTokenVerifier,
			"access_expires_at":      rotated.AccessExpiresAt,
			"refresh_expires_at":     refreshExpiresAt,
			"is_active":              true,
			"is_locked":              false,
			"last_seen_at":           time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// Deactivate implements domain.SessionRepository
func (r *SessionRepositoryImpl) Deactivate(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Model(&DBPatientSession{}).
		Where("id = ?", sessionID).
		Update("is_active", false).Error
}

// TouchLastSeen implements domain.SessionRepository
func (r *SessionRepositoryImpl) TouchLastSeen(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Model(&DBPatientSession{}).
		Where("id = ?", sessionID).
		Update("last_seen_at", time.Now()).Error
}

// SaveRecoverySetup implements domain.SessionRepository. The five answer
// hashes and the recovery identifier land in one transaction so a partially
// configured session is never visible.
func (r *SessionRepositoryImpl) SaveRecoverySetup(ctx context.Context, sessionID, recoveryID, recoveryIDHash string, questions []domain.RecoveryQuestion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, q := range questions {
			dbQ := &DBRecoveryQuestion{
				SessionID:   sessionID,
				QuestionKey: q.QuestionKey,
				AnswerHash:  q.AnswerHash,
				AnswerSalt:  q.AnswerSalt,
			}
			if err := tx.Create(dbQ).Error; err != nil {
				return err
			}
		}
		res := tx.Model(&DBPatientSession{}).
			Where("id = ? AND recovery_setup_complete = ?", sessionID, false).
			Updates(map[string]interface{}{
				"public_recovery_id":      recoveryID,
				"public_recovery_id_hash": recoveryIDHash,
				"recovery_setup_complete": true,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrRecoveryAlreadySetup
		}
		return nil
	})
}

// RecoveryQuestions implements domain.SessionRepository
func (r *SessionRepositoryImpl) RecoveryQuestions(ctx context.Context, sessionID string) ([]domain.RecoveryQuestion, error) {
	var dbQuestions []DBRecoveryQuestion
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("question_key").
		Find(&dbQuestions).Error
	if err != nil {
		return nil, err
	}
	questions := make([]domain.RecoveryQuestion, 0, len(dbQuestions))
	for _, q := range dbQuestions {
		questions = append(questions, domain.RecoveryQuestion{
			ID:          q.ID,
			SessionID:   q.SessionID,
			QuestionKey: q.QuestionKey,
			AnswerHash:  q.AnswerHash,
			AnswerSalt:  q.AnswerSalt,
			CreatedAt:   q.CreatedAt,
		})
	}
	return questions, nil
}

// domainToDB converts domain session to database session
func (r *SessionRepositoryImpl) domainToDB(session *domain.PatientSession) *DBPatientSession {
	return &DBPatientSession{
		ID:                    session.ID,
		AccessTokenHash:       session.AccessTokenHash,
		AccessTokenVerifier:   session.AccessTokenVerifier,
		RefreshTokenHash:      session.RefreshTokenHash,
		RefreshTokenVerifier:  session.RefreshTokenVerifier,
		PublicRecoveryID:      session.PublicRecoveryID,
		PublicRecoveryIDHash:  session.PublicRecoveryIDHash,
		IsActive:              session.IsActive,
		IsLocked:              session.IsLocked,
		AccessExpiresAt:       session.AccessExpiresAt,
		RefreshExpiresAt:      session.RefreshExpiresAt,
		RecoverySetupComplete: session.RecoverySetupComplete,
		LastSeenAt:            session.LastSeenAt,
	}
}

// dbToDomain converts database session to domain session
func (r *SessionRepositoryImpl) dbToDomain(dbSession *DBPatientSession) *domain.PatientSession {
	return &domain.PatientSession{
		ID:                    dbSession.ID,
		AccessTokenHash:       dbSession.AccessTokenHash,
		AccessTokenVerifier:   dbSession.AccessTokenVerifier,
		RefreshTokenHash:      dbSession.RefreshTokenHash,
		RefreshTokenVerifier:  dbSession.RefreshTokenVerifier,
		PublicRecoveryID:      dbSession.PublicRecoveryID,
		PublicRecoveryIDHash:  dbSession.PublicRecoveryIDHash,
		IsActive:              dbSession.IsActive,
		IsLocked:              dbSession.IsLocked,
		AccessExpiresAt:       dbSession.AccessExpiresAt,
		RefreshExpiresAt:      dbSession.RefreshExpiresAt,
		RecoverySetupComplete: dbSession.RecoverySetupComplete,
		CreatedAt:             dbSession.CreatedAt,
		LastSeenAt:            dbSession.LastSeenAt,
	}
}
