package payments

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/entrenaapp/entrena-backend/internal/activities"
	"github.com/entrenaapp/entrena-backend/internal/coachaccounts"
	"github.com/entrenaapp/entrena-backend/internal/ledger"
	"github.com/entrenaapp/entrena-backend/pkg/config"
	"github.com/entrenaapp/entrena-backend/pkg/db/models"
	"github.com/entrenaapp/entrena-backend/pkg/enums"
	pkgerrors "github.com/entrenaapp/entrena-backend/pkg/errors"
	"github.com/entrenaapp/entrena-backend/pkg/logger"
	"github.com/entrenaapp/entrena-backend/pkg/mercadopago"
)

func testService(t *testing.T, activity *models.Activity, vault coachaccounts.Vault, gateway *stubPreferenceCreator, calc *stubCalculator) (Service, *stubLedgerCreateRepo) {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
	ledgerRepo := &stubLedgerCreateRepo{}
	service, err := NewService(ServiceParams{
		ActivityRepo: &stubActivityRepo{activity: activity},
		Vault:        vault,
		Commission:   calc,
		Gateway:      gateway,
		LedgerRepo:   ledgerRepo,
		Gateways: config.MercadoPagoConfig{
			NotificationURL: "https://api.example.com/webhooks/mercadopago",
			SuccessURL:      "https://app.example.com/ok",
			FailureURL:      "https://app.example.com/fail",
			PendingURL:      "https://app.example.com/pending",
		},
		Logger: logg,
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return service, ledgerRepo
}

func testActivity() *models.Activity {
	return &models.Activity{
		ID:       uuid.New(),
		CoachID:  uuid.New(),
		Title:    "Plan mensual",
		Type:     enums.ActivityTypePlan,
		Price:    decimal.NewFromInt(1000),
		Currency: "ARS",
	}
}

func TestCreateCheckoutWritesLedgerBeforeRedirect(t *testing.T) {
	activity := testActivity()
	vault := &stubVault{credential: &coachaccounts.Credential{
		Account: &models.CoachGatewayAccount{
			GatewayUserID:  "mp-user-9",
			EncryptedToken: "sealed-token",
			Authorized:     true,
		},
		AccessToken: "coach-plaintext-token",
	}}
	gateway := &stubPreferenceCreator{pref: &mercadopago.Preference{ID: "pref-1", InitPoint: "https://mp/init"}}
	calc := &stubCalculator{fee: decimal.NewFromInt(100)}
	service, ledgerRepo := testService(t, activity, vault, gateway, calc)

	clientID := uuid.New()
	result, err := service.CreateCheckout(context.Background(), CreateCheckoutInput{
		ActivityID: activity.ID,
		ClientID:   clientID,
	})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}

	if result.InitPoint != "https://mp/init" || result.PreferenceID != "pref-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !result.SellerAmount.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("expected seller amount 900, got %s", result.SellerAmount)
	}
	if gateway.gotToken != "coach-plaintext-token" {
		t.Fatalf("preference must use the coach's decrypted token")
	}
	if !gateway.gotParams.MarketplaceFee.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected marketplace fee 100, got %s", gateway.gotParams.MarketplaceFee)
	}

	prefix := fmt.Sprintf("pending_%s_%s_", activity.ID, clientID)
	if !strings.HasPrefix(result.ExternalReference, prefix) {
		t.Fatalf("external reference %q missing prefix %q", result.ExternalReference, prefix)
	}

	if len(ledgerRepo.created) != 1 {
		t.Fatalf("expected one ledger record, got %d", len(ledgerRepo.created))
	}
	record := ledgerRepo.created[0]
	if record.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("record must start pending, got %s", record.PaymentStatus)
	}
	if record.GatewayPreferenceID == nil || *record.GatewayPreferenceID != "pref-1" {
		t.Fatalf("preference id not snapshotted")
	}
	if record.CoachGatewayAccountID != "mp-user-9" || record.CoachEncryptedToken != "sealed-token" {
		t.Fatalf("coach gateway identity not snapshotted")
	}
	if !record.SellerAmount.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("expected seller amount 900, got %s", record.SellerAmount)
	}
}

func TestCreateCheckoutRejectsFeeAtOrAboveTotal(t *testing.T) {
	activity := testActivity()
	vault := &stubVault{credential: &coachaccounts.Credential{
		Account:     &models.CoachGatewayAccount{GatewayUserID: "u", EncryptedToken: "s", Authorized: true},
		AccessToken: "tok",
	}}
	gateway := &stubPreferenceCreator{}
	calc := &stubCalculator{fee: decimal.NewFromInt(1000)}
	service, ledgerRepo := testService(t, activity, vault, gateway, calc)

	_, err := service.CreateCheckout(context.Background(), CreateCheckoutInput{
		ActivityID: activity.ID,
		ClientID:   uuid.New(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeCommissionConfig {
		t.Fatalf("expected COMMISSION_CONFIG, got %v", err)
	}
	if gateway.calls != 0 {
		t.Fatalf("gateway must not be called with a broken commission")
	}
	if len(ledgerRepo.created) != 0 {
		t.Fatalf("no ledger record should be written")
	}
}

func TestCreateCheckoutCoachNotConfigured(t *testing.T) {
	activity := testActivity()
	vault := &stubVault{err: pkgerrors.New(pkgerrors.CodeCoachNotConfigured, "coach has no gateway account")}
	service, _ := testService(t, activity, vault, &stubPreferenceCreator{}, &stubCalculator{fee: decimal.NewFromInt(100)})

	_, err := service.CreateCheckout(context.Background(), CreateCheckoutInput{
		ActivityID: activity.ID,
		ClientID:   uuid.New(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeCoachNotConfigured {
		t.Fatalf("expected COACH_NOT_CONFIGURED, got %v", err)
	}
}

func TestCreateCheckoutActivityNotFound(t *testing.T) {
	service, _ := testService(t, nil, &stubVault{}, &stubPreferenceCreator{}, &stubCalculator{})

	_, err := service.CreateCheckout(context.Background(), CreateCheckoutInput{
		ActivityID: uuid.New(),
		ClientID:   uuid.New(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestCreateCheckoutValidatesInput(t *testing.T) {
	service, _ := testService(t, testActivity(), &stubVault{}, &stubPreferenceCreator{}, &stubCalculator{})

	if _, err := service.CreateCheckout(context.Background(), CreateCheckoutInput{ClientID: uuid.New()}); pkgerrors.As(err) == nil {
		t.Fatal("expected validation error for missing activity id")
	}
	if _, err := service.CreateCheckout(context.Background(), CreateCheckoutInput{ActivityID: uuid.New()}); pkgerrors.As(err) == nil {
		t.Fatal("expected validation error for missing client id")
	}
}

type stubActivityRepo struct {
	activity *models.Activity
}

func (s *stubActivityRepo) WithTx(tx *gorm.DB) activities.Repository { return s }

func (s *stubActivityRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Activity, error) {
	if s.activity == nil || s.activity.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.activity, nil
}

type stubVault struct {
	credential *coachaccounts.Credential
	err        error
}

func (s *stubVault) Resolve(ctx context.Context, coachID uuid.UUID) (*coachaccounts.Credential, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.credential, nil
}

func (s *stubVault) OpenSealed(sealed string) (string, error) { return "", nil }

func (s *stubVault) Store(ctx context.Context, account *models.CoachGatewayAccount, token string) error {
	return nil
}

type stubPreferenceCreator struct {
	pref      *mercadopago.Preference
	gotToken  string
	gotParams mercadopago.PreferenceParams
	calls     int
}

func (s *stubPreferenceCreator) CreatePreference(ctx context.Context, coachToken string, params mercadopago.PreferenceParams) (*mercadopago.Preference, error) {
	s.calls++
	s.gotToken = coachToken
	s.gotParams = params
	return s.pref, nil
}

type stubCalculator struct {
	fee decimal.Decimal
}

func (s *stubCalculator) Fee(total decimal.Decimal) decimal.Decimal { return s.fee }

type stubLedgerBase struct{}

func (stubLedgerBase) WithTx(tx *gorm.DB) ledger.Repository { return nil }
func (stubLedgerBase) Create(ctx context.Context, record *models.LedgerRecord) error {
	return nil
}
func (stubLedgerBase) FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerRecord, error) {
	return nil, nil
}
func (stubLedgerBase) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.LedgerRecord, error) {
	return nil, nil
}
func (stubLedgerBase) FindByPreferenceID(ctx context.Context, preferenceID string) (*models.LedgerRecord, error) {
	return nil, nil
}
func (stubLedgerBase) FindByExternalReference(ctx context.Context, reference string) (*models.LedgerRecord, error) {
	return nil, nil
}
func (stubLedgerBase) FindByGatewayPaymentID(ctx context.Context, paymentID string) (*models.LedgerRecord, error) {
	return nil, nil
}
func (stubLedgerBase) Update(ctx context.Context, record *models.LedgerRecord) error { return nil }
func (stubLedgerBase) LinkEnrollment(ctx context.Context, recordID, enrollmentID uuid.UUID) (bool, error) {
	return false, nil
}

type stubLedgerCreateRepo struct {
	stubLedgerBase
	created []*models.LedgerRecord
}

func (s *stubLedgerCreateRepo) Create(ctx context.Context, record *models.LedgerRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	s.created = append(s.created, record)
	return nil
}
