package enrollments

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/entrenaapp/entrena-backend/internal/ledger"
	"github.com/entrenaapp/entrena-backend/pkg/db/models"
	"github.com/entrenaapp/entrena-backend/pkg/enums"
	"github.com/entrenaapp/entrena-backend/pkg/logger"
)

func testActivator(t *testing.T, enrollmentRepo Repository, ledgerRepo ledger.Repository) Activator {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
	activator, err := NewActivator(ActivatorParams{
		EnrollmentRepo: enrollmentRepo,
		LedgerRepo:     ledgerRepo,
		Logger:         logg,
	})
	if err != nil {
		t.Fatalf("setup activator: %v", err)
	}
	return activator
}

func testRecord() *models.LedgerRecord {
	return &models.LedgerRecord{
		ID:         uuid.New(),
		ActivityID: uuid.New(),
		ClientID:   uuid.New(),
	}
}

func TestApplyCompletedCreatesActiveEnrollment(t *testing.T) {
	enrollmentRepo := &memEnrollmentRepo{store: map[uuid.UUID]*models.Enrollment{}}
	ledgerRepo := &memLedgerLinkRepo{}
	record := testRecord()
	ledgerRepo.record = record
	activator := testActivator(t, enrollmentRepo, ledgerRepo)

	outcome, err := activator.Apply(context.Background(), nil, record, enums.PaymentStatusCompleted)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !outcome.CreatedNow || !outcome.ActivatedNow {
		t.Fatalf("expected created+activated, got %+v", outcome)
	}
	if outcome.Enrollment.Status != enums.EnrollmentStatusActiva {
		t.Fatalf("expected activa, got %s", outcome.Enrollment.Status)
	}
	if record.EnrollmentID == nil || *record.EnrollmentID != outcome.Enrollment.ID {
		t.Fatalf("record not linked")
	}
	if ledgerRepo.linkCalls != 1 {
		t.Fatalf("expected one link call, got %d", ledgerRepo.linkCalls)
	}
}

func TestApplyCompletedUpgradesPendingEnrollment(t *testing.T) {
	existing := &models.Enrollment{ID: uuid.New(), Status: enums.EnrollmentStatusPendiente}
	enrollmentRepo := &memEnrollmentRepo{store: map[uuid.UUID]*models.Enrollment{existing.ID: existing}}
	record := testRecord()
	record.EnrollmentID = &existing.ID
	activator := testActivator(t, enrollmentRepo, &memLedgerLinkRepo{record: record})

	outcome, err := activator.Apply(context.Background(), nil, record, enums.PaymentStatusCompleted)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.CreatedNow {
		t.Fatalf("must reuse existing enrollment")
	}
	if !outcome.ActivatedNow || outcome.Enrollment.Status != enums.EnrollmentStatusActiva {
		t.Fatalf("expected activation, got %+v", outcome)
	}
}

func TestApplyCompletedIsIdempotentOnActiveEnrollment(t *testing.T) {
	existing := &models.Enrollment{ID: uuid.New(), Status: enums.EnrollmentStatusActiva}
	enrollmentRepo := &memEnrollmentRepo{store: map[uuid.UUID]*models.Enrollment{existing.ID: existing}}
	record := testRecord()
	record.EnrollmentID = &existing.ID
	activator := testActivator(t, enrollmentRepo, &memLedgerLinkRepo{record: record})

	outcome, err := activator.Apply(context.Background(), nil, record, enums.PaymentStatusCompleted)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.CreatedNow || outcome.ActivatedNow {
		t.Fatalf("replay must be a no-op, got %+v", outcome)
	}
	if len(enrollmentRepo.store) != 1 {
		t.Fatalf("no new enrollment expected")
	}
}

func TestApplyCompletedDoesNotResurrectCancelled(t *testing.T) {
	existing := &models.Enrollment{ID: uuid.New(), Status: enums.EnrollmentStatusCancelada}
	enrollmentRepo := &memEnrollmentRepo{store: map[uuid.UUID]*models.Enrollment{existing.ID: existing}}
	record := testRecord()
	record.EnrollmentID = &existing.ID
	activator := testActivator(t, enrollmentRepo, &memLedgerLinkRepo{record: record})

	outcome, err := activator.Apply(context.Background(), nil, record, enums.PaymentStatusCompleted)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.Enrollment.Status != enums.EnrollmentStatusCancelada {
		t.Fatalf("cancellation is terminal, got %s", outcome.Enrollment.Status)
	}
}

func TestApplyFailedCreatesNothing(t *testing.T) {
	enrollmentRepo := &memEnrollmentRepo{store: map[uuid.UUID]*models.Enrollment{}}
	record := testRecord()
	activator := testActivator(t, enrollmentRepo, &memLedgerLinkRepo{record: record})

	outcome, err := activator.Apply(context.Background(), nil, record, enums.PaymentStatusFailed)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.Enrollment != nil || len(enrollmentRepo.store) != 0 {
		t.Fatalf("rejection must not create an enrollment")
	}
}

func TestApplyFailedCancelsExistingEnrollment(t *testing.T) {
	existing := &models.Enrollment{ID: uuid.New(), Status: enums.EnrollmentStatusPendiente}
	enrollmentRepo := &memEnrollmentRepo{store: map[uuid.UUID]*models.Enrollment{existing.ID: existing}}
	record := testRecord()
	record.EnrollmentID = &existing.ID
	activator := testActivator(t, enrollmentRepo, &memLedgerLinkRepo{record: record})

	outcome, err := activator.Apply(context.Background(), nil, record, enums.PaymentStatusFailed)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.Enrollment.Status != enums.EnrollmentStatusCancelada {
		t.Fatalf("rejected payment must revoke the pending enrollment, got %s", outcome.Enrollment.Status)
	}
}

func TestApplyLinkageRetriesThenEscalates(t *testing.T) {
	enrollmentRepo := &memEnrollmentRepo{store: map[uuid.UUID]*models.Enrollment{}}
	record := testRecord()
	ledgerRepo := &memLedgerLinkRepo{record: record, failLinks: 2}
	activator := testActivator(t, enrollmentRepo, ledgerRepo)

	_, err := activator.Apply(context.Background(), nil, record, enums.PaymentStatusCompleted)
	if err == nil {
		t.Fatal("expected linkage failure to surface")
	}
	if ledgerRepo.linkCalls != 2 {
		t.Fatalf("expected initial attempt plus one retry, got %d", ledgerRepo.linkCalls)
	}
}

func TestApplyLinkageRecoversOnRetry(t *testing.T) {
	enrollmentRepo := &memEnrollmentRepo{store: map[uuid.UUID]*models.Enrollment{}}
	record := testRecord()
	ledgerRepo := &memLedgerLinkRepo{record: record, failLinks: 1}
	activator := testActivator(t, enrollmentRepo, ledgerRepo)

	outcome, err := activator.Apply(context.Background(), nil, record, enums.PaymentStatusCompleted)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if ledgerRepo.linkCalls != 2 {
		t.Fatalf("expected retry after transient failure, got %d calls", ledgerRepo.linkCalls)
	}
	if record.EnrollmentID == nil || *record.EnrollmentID != outcome.Enrollment.ID {
		t.Fatalf("record not linked after retry")
	}
}

type memEnrollmentRepo struct {
	store map[uuid.UUID]*models.Enrollment
}

func (m *memEnrollmentRepo) WithTx(tx *gorm.DB) Repository { return m }

func (m *memEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == uuid.Nil {
		enrollment.ID = uuid.New()
	}
	m.store[enrollment.ID] = enrollment
	return nil
}

func (m *memEnrollmentRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Enrollment, error) {
	return m.store[id], nil
}

func (m *memEnrollmentRepo) Update(ctx context.Context, enrollment *models.Enrollment) error {
	m.store[enrollment.ID] = enrollment
	return nil
}

type memLedgerLinkRepo struct {
	record    *models.LedgerRecord
	linkCalls int
	failLinks int
}

func (m *memLedgerLinkRepo) WithTx(tx *gorm.DB) ledger.Repository { return m }

func (m *memLedgerLinkRepo) Create(ctx context.Context, record *models.LedgerRecord) error {
	return nil
}

func (m *memLedgerLinkRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerRecord, error) {
	return m.record, nil
}

func (m *memLedgerLinkRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.LedgerRecord, error) {
	return m.record, nil
}

func (m *memLedgerLinkRepo) FindByPreferenceID(ctx context.Context, preferenceID string) (*models.LedgerRecord, error) {
	return nil, nil
}

func (m *memLedgerLinkRepo) FindByExternalReference(ctx context.Context, reference string) (*models.LedgerRecord, error) {
	return nil, nil
}

func (m *memLedgerLinkRepo) FindByGatewayPaymentID(ctx context.Context, paymentID string) (*models.LedgerRecord, error) {
	return nil, nil
}

func (m *memLedgerLinkRepo) Update(ctx context.Context, record *models.LedgerRecord) error {
	return nil
}

func (m *memLedgerLinkRepo) LinkEnrollment(ctx context.Context, recordID, enrollmentID uuid.UUID) (bool, error) {
	m.linkCalls++
	if m.linkCalls <= m.failLinks {
		return false, errors.New("transient write failure")
	}
	if m.record.EnrollmentID != nil {
		return false, nil
	}
	id := enrollmentID
	m.record.EnrollmentID = &id
	return true, nil
}
