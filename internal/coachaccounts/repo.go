package coachaccounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entrenaapp/entrena-backend/pkg/db/models"
)

// Repository manages persistence for coach gateway accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCoachID(ctx context.Context, coachID uuid.UUID) (*models.CoachGatewayAccount, error)
	Upsert(ctx context.Context, account *models.CoachGatewayAccount) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a coach account repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByCoachID(ctx context.Context, coachID uuid.UUID) (*models.CoachGatewayAccount, error) {
	var account models.CoachGatewayAccount
	if err := r.db.WithContext(ctx).
		Where("coach_id = ?", coachID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) Upsert(ctx context.Context, account *models.CoachGatewayAccount) error {
	return r.db.WithContext(ctx).Save(account).Error
}
