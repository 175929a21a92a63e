package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/entrenaapp/entrena-backend/pkg/db/models"
)

// Repository manages persistence for ledger records. Records are
// append-and-mutate: created once per purchase attempt and updated only
// by webhook reconciliation. Nothing deletes them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.LedgerRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerRecord, error)
	// FindByIDForUpdate locks the row for the remainder of the enclosing
	// transaction, serializing concurrent webhook deliveries for the same
	// purchase.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.LedgerRecord, error)
	FindByPreferenceID(ctx context.Context, preferenceID string) (*models.LedgerRecord, error)
	FindByExternalReference(ctx context.Context, reference string) (*models.LedgerRecord, error)
	FindByGatewayPaymentID(ctx context.Context, paymentID string) (*models.LedgerRecord, error)
	Update(ctx context.Context, record *models.LedgerRecord) error
	// LinkEnrollment writes the enrollment id only if the record has none
	// yet. Returns false when another delivery already linked it.
	LinkEnrollment(ctx context.Context, recordID, enrollmentID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.LedgerRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerRecord, error) {
	return r.findOne(ctx, r.db, "id = ?", id)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.LedgerRecord, error) {
	locked := r.db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	return r.findOne(ctx, locked, "id = ?", id)
}

func (r *repository) FindByPreferenceID(ctx context.Context, preferenceID string) (*models.LedgerRecord, error) {
	return r.findOne(ctx, r.db, "gateway_preference_id = ?", preferenceID)
}

func (r *repository) FindByExternalReference(ctx context.Context, reference string) (*models.LedgerRecord, error) {
	return r.findOne(ctx, r.db, "external_reference = ?", reference)
}

func (r *repository) FindByGatewayPaymentID(ctx context.Context, paymentID string) (*models.LedgerRecord, error) {
	return r.findOne(ctx, r.db, "gateway_payment_id = ?", paymentID)
}

func (r *repository) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*models.LedgerRecord, error) {
	var record models.LedgerRecord
	if err := db.WithContext(ctx).Where(query, arg).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) Update(ctx context.Context, record *models.LedgerRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *repository) LinkEnrollment(ctx context.Context, recordID, enrollmentID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.LedgerRecord{}).
		Where("id = ? AND enrollment_id IS NULL", recordID).
		Update("enrollment_id", enrollmentID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
