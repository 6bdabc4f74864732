package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// DoctorRepositoryImpl implements domain.DoctorRepository using GORM. Doctor
// profiles are owned by the back office; this service only reads them and
// flips availability.
type DoctorRepositoryImpl struct {
	db *gorm.DB
}

// DBDoctor represents the database model for Doctor
type DBDoctor struct {
	ID            string `gorm:"primaryKey;size:64"`
	DisplayName   string `gorm:"size:255"`
	ContactNumber string `gorm:"size:32"`
	IsVerified    bool   `gorm:"index"`
	IsAvailable   bool   `gorm:"index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName returns the table name for GORM
func (DBDoctor) TableName() string {
	return "doctors"
}

// NewDoctorRepository creates a new doctor repository
func NewDoctorRepository(db *gorm.DB) domain.DoctorRepository {
	return &DoctorRepositoryImpl{db: db}
}

// FindByID implements domain.DoctorRepository
func (r *DoctorRepositoryImpl) FindByID(ctx context.Context, id string) (*domain.Doctor, error) {
	var dbDoctor DBDoctor
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&dbDoctor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDoctorNotFound
		}
		return nil, err
	}
	return &domain.Doctor{
		ID:            dbDoctor.ID,
		DisplayName:   dbDoctor.DisplayName,
		ContactNumber: dbDoctor.ContactNumber,
		IsVerified:    dbDoctor.IsVerified,
		IsAvailable:   dbDoctor.IsAvailable,
	}, nil
}

// SetAvailability implements domain.DoctorRepository
func (r *DoctorRepositoryImpl) SetAvailability(ctx context.Context, id string, available bool) error {
	return r.db.WithContext(ctx).Model(&DBDoctor{}).
		Where("id = ?", id).
		Update("is_available", available).Error
}
