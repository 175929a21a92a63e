package enrollments

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/entrenaapp/entrena-backend/internal/ledger"
	"github.com/entrenaapp/entrena-backend/pkg/db/models"
	"github.com/entrenaapp/entrena-backend/pkg/enums"
	pkgerrors "github.com/entrenaapp/entrena-backend/pkg/errors"
	"github.com/entrenaapp/entrena-backend/pkg/logger"
	"github.com/entrenaapp/entrena-backend/pkg/retry"
)

const (
	linkMaxRetries = 1
	linkRetryDelay = 50 * time.Millisecond
)

// Outcome reports what Apply did to the enrollment.
type Outcome struct {
	Enrollment   *models.Enrollment
	CreatedNow   bool
	ActivatedNow bool
}

// Activator drives the enrollment lifecycle from payment outcomes. All
// transitions are idempotent: replaying the same payment status any
// number of times converges on the same enrollment state.
type Activator interface {
	Apply(ctx context.Context, tx *gorm.DB, record *models.LedgerRecord, status enums.PaymentStatus) (*Outcome, error)
}

type ActivatorParams struct {
	EnrollmentRepo Repository
	LedgerRepo     ledger.Repository
	Logger         *logger.Logger
}

type activator struct {
	enrollments Repository
	ledgerRepo  ledger.Repository
	logger      *logger.Logger
}

// NewActivator wires the enrollment activator.
func NewActivator(params ActivatorParams) (Activator, error) {
	if params.EnrollmentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "enrollment repo required")
	}
	if params.LedgerRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repo required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &activator{
		enrollments: params.EnrollmentRepo,
		ledgerRepo:  params.LedgerRepo,
		logger:      params.Logger,
	}, nil
}

// Apply transitions the enrollment linked to the locked ledger record.
// The caller must hold the record's row lock inside tx so concurrent
// deliveries for the same purchase serialize here.
func (a *activator) Apply(ctx context.Context, tx *gorm.DB, record *models.LedgerRecord, status enums.PaymentStatus) (*Outcome, error) {
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger record required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}

	repo := a.enrollments.WithTx(tx)

	var existing *models.Enrollment
	if record.EnrollmentID != nil {
		found, err := repo.FindByID(ctx, *record.EnrollmentID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading linked enrollment")
		}
		existing = found
	}

	switch status {
	case enums.PaymentStatusCompleted:
		return a.applyCompleted(ctx, tx, repo, record, existing)
	case enums.PaymentStatusPending:
		return a.applyPending(ctx, tx, repo, record, existing)
	case enums.PaymentStatusFailed, enums.PaymentStatusCancelled:
		// Rejections never create state, but an enrollment that already
		// exists for this purchase loses its access grant.
		return a.applyCancelled(ctx, repo, existing)
	default:
		return &Outcome{Enrollment: existing}, nil
	}
}

func (a *activator) applyCompleted(ctx context.Context, tx *gorm.DB, repo Repository, record *models.LedgerRecord, existing *models.Enrollment) (*Outcome, error) {
	if existing == nil {
		created, err := a.createLinked(ctx, tx, repo, record, enums.EnrollmentStatusActiva)
		if err != nil {
			return nil, err
		}
		return &Outcome{Enrollment: created, CreatedNow: true, ActivatedNow: true}, nil
	}

	switch existing.Status {
	case enums.EnrollmentStatusPendiente:
		existing.Status = enums.EnrollmentStatusActiva
		if err := repo.Update(ctx, existing); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activating enrollment")
		}
		return &Outcome{Enrollment: existing, ActivatedNow: true}, nil
	case enums.EnrollmentStatusCancelada:
		// Cancellation is terminal. An approved payment arriving after a
		// cancellation is surfaced for manual review, not auto-resurrected.
		a.logger.Warn(a.logger.WithField(ctx, "enrollment_id", existing.ID.String()),
			"approved payment for cancelled enrollment, leaving cancelled")
		return &Outcome{Enrollment: existing}, nil
	default:
		return &Outcome{Enrollment: existing}, nil
	}
}

func (a *activator) applyPending(ctx context.Context, tx *gorm.DB, repo Repository, record *models.LedgerRecord, existing *models.Enrollment) (*Outcome, error) {
	if existing == nil {
		created, err := a.createLinked(ctx, tx, repo, record, enums.EnrollmentStatusPendiente)
		if err != nil {
			return nil, err
		}
		return &Outcome{Enrollment: created, CreatedNow: true}, nil
	}
	// Out-of-order delivery: a pending notification must never demote an
	// enrollment that a later-approved payment already activated.
	return &Outcome{Enrollment: existing}, nil
}

func (a *activator) applyCancelled(ctx context.Context, repo Repository, existing *models.Enrollment) (*Outcome, error) {
	if existing == nil || existing.Status == enums.EnrollmentStatusCancelada {
		return &Outcome{Enrollment: existing}, nil
	}
	existing.Status = enums.EnrollmentStatusCancelada
	if err := repo.Update(ctx, existing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancelling enrollment")
	}
	return &Outcome{Enrollment: existing}, nil
}

func (a *activator) createLinked(ctx context.Context, tx *gorm.DB, repo Repository, record *models.LedgerRecord, status enums.EnrollmentStatus) (*models.Enrollment, error) {
	enrollment := &models.Enrollment{
		ActivityID: record.ActivityID,
		ClientID:   record.ClientID,
		Status:     status,
	}
	if err := repo.Create(ctx, enrollment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating enrollment")
	}

	ledgerRepo := a.ledgerRepo.WithTx(tx)
	var linked bool
	err := retry.Do(ctx, linkMaxRetries, linkRetryDelay, retry.Always, func(ctx context.Context) error {
		ok, linkErr := ledgerRepo.LinkEnrollment(ctx, record.ID, enrollment.ID)
		if linkErr != nil {
			return linkErr
		}
		linked = ok
		return nil
	})
	if err != nil {
		// Escalate loudly: an unlinked enrollment would let a later
		// delivery create a duplicate. Rolling back keeps the pair atomic.
		a.logger.Error(a.logger.WithFields(ctx, map[string]any{
			"ledger_record_id": record.ID.String(),
			"enrollment_id":    enrollment.ID.String(),
		}), "enrollment linkage failed after retry", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "linking enrollment to ledger record")
	}
	if !linked {
		a.logger.Warn(a.logger.WithField(ctx, "ledger_record_id", record.ID.String()),
			"ledger record already linked to an enrollment")
	}

	id := enrollment.ID
	record.EnrollmentID = &id
	return enrollment, nil
}
