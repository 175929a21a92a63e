package programs

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entrenaapp/entrena-backend/pkg/db/models"
)

// Repository manages persistence for program detail rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListTemplate(ctx context.Context, activityID uuid.UUID) ([]models.ProgramDetail, error)
	CountForEnrollment(ctx context.Context, enrollmentID uuid.UUID) (int64, error)
	CreateBatch(ctx context.Context, details []models.ProgramDetail) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a program detail repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListTemplate(ctx context.Context, activityID uuid.UUID) ([]models.ProgramDetail, error) {
	var details []models.ProgramDetail
	if err := r.db.WithContext(ctx).
		Where("activity_id = ? AND enrollment_id IS NULL", activityID).
		Order("day_number ASC").
		Find(&details).Error; err != nil {
		return nil, err
	}
	return details, nil
}

func (r *repository) CountForEnrollment(ctx context.Context, enrollmentID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ProgramDetail{}).
		Where("enrollment_id = ?", enrollmentID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) CreateBatch(ctx context.Context, details []models.ProgramDetail) error {
	if len(details) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&details).Error
}
