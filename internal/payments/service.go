package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/entrenaapp/entrena-backend/internal/activities"
	"github.com/entrenaapp/entrena-backend/internal/coachaccounts"
	"github.com/entrenaapp/entrena-backend/internal/ledger"
	"github.com/entrenaapp/entrena-backend/pkg/commission"
	"github.com/entrenaapp/entrena-backend/pkg/config"
	"github.com/entrenaapp/entrena-backend/pkg/db/models"
	"github.com/entrenaapp/entrena-backend/pkg/enums"
	pkgerrors "github.com/entrenaapp/entrena-backend/pkg/errors"
	"github.com/entrenaapp/entrena-backend/pkg/logger"
	"github.com/entrenaapp/entrena-backend/pkg/mercadopago"
)

type preferenceCreator interface {
	CreatePreference(ctx context.Context, coachToken string, params mercadopago.PreferenceParams) (*mercadopago.Preference, error)
}

// Service starts purchases: it prices the activity, registers a split
// checkout preference on the coach's gateway account, and writes the
// ledger record before the client is redirected to pay.
type Service interface {
	CreateCheckout(ctx context.Context, input CreateCheckoutInput) (*CheckoutResult, error)
}

// CreateCheckoutInput identifies the purchase being started.
type CreateCheckoutInput struct {
	ActivityID uuid.UUID `json:"activity_id" validate:"required"`
	ClientID   uuid.UUID `json:"-"`
}

// CheckoutResult is returned to the client so it can redirect to the
// gateway checkout.
type CheckoutResult struct {
	LedgerRecordID    uuid.UUID       `json:"ledger_record_id"`
	PreferenceID      string          `json:"preference_id"`
	InitPoint         string          `json:"init_point"`
	ExternalReference string          `json:"external_reference"`
	Amount            decimal.Decimal `json:"amount"`
	MarketplaceFee    decimal.Decimal `json:"marketplace_fee"`
	SellerAmount      decimal.Decimal `json:"seller_amount"`
}

type ServiceParams struct {
	ActivityRepo activities.Repository
	Vault        coachaccounts.Vault
	Commission   commission.Calculator
	Gateway      preferenceCreator
	LedgerRepo   ledger.Repository
	Gateways     config.MercadoPagoConfig
	Logger       *logger.Logger
}

type service struct {
	activityRepo activities.Repository
	vault        coachaccounts.Vault
	commission   commission.Calculator
	gateway      preferenceCreator
	ledgerRepo   ledger.Repository
	cfg          config.MercadoPagoConfig
	logger       *logger.Logger
	now          func() time.Time
}

// NewService wires the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.ActivityRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "activity repo required")
	}
	if params.Vault == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "credential vault required")
	}
	if params.Commission == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission calculator required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway client required")
	}
	if params.LedgerRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repo required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &service{
		activityRepo: params.ActivityRepo,
		vault:        params.Vault,
		commission:   params.Commission,
		gateway:      params.Gateway,
		ledgerRepo:   params.LedgerRepo,
		cfg:          params.Gateways,
		logger:       params.Logger,
		now:          time.Now,
	}, nil
}

func (s *service) CreateCheckout(ctx context.Context, input CreateCheckoutInput) (*CheckoutResult, error) {
	if input.ActivityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "activity id is required")
	}
	if input.ClientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client id is required")
	}

	ctx = s.logger.WithActivityID(ctx, input.ActivityID.String())
	ctx = s.logger.WithClientID(ctx, input.ClientID.String())

	activity, err := s.activityRepo.FindByID(ctx, input.ActivityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "activity not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading activity")
	}
	if !activity.Price.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "activity price must be positive")
	}

	credential, err := s.vault.Resolve(ctx, activity.CoachID)
	if err != nil {
		return nil, err
	}

	fee := s.commission.Fee(activity.Price)
	if fee.IsNegative() || fee.GreaterThanOrEqual(activity.Price) {
		return nil, pkgerrors.New(pkgerrors.CodeCommissionConfig,
			fmt.Sprintf("commission %s out of range for total %s", fee, activity.Price))
	}

	reference := buildExternalReference(input.ActivityID, input.ClientID, s.now())

	pref, err := s.gateway.CreatePreference(ctx, credential.AccessToken, mercadopago.PreferenceParams{
		Items: []mercadopago.PreferenceItem{{
			Title:      activity.Title,
			Quantity:   1,
			UnitPrice:  activity.Price,
			CurrencyID: activity.Currency,
		}},
		MarketplaceFee:    fee,
		ExternalReference: reference,
		NotificationURL:   s.cfg.NotificationURL,
		BackURLs: mercadopago.BackURLs{
			Success: s.cfg.SuccessURL,
			Failure: s.cfg.FailureURL,
			Pending: s.cfg.PendingURL,
		},
	})
	if err != nil {
		return nil, err
	}

	prefID := pref.ID
	record := &models.LedgerRecord{
		ActivityID:            input.ActivityID,
		ClientID:              input.ClientID,
		AmountPaid:            activity.Price,
		MarketplaceFee:        fee,
		SellerAmount:          activity.Price.Sub(fee),
		PaymentStatus:         enums.PaymentStatusPending,
		ExternalReference:     reference,
		GatewayPreferenceID:   &prefID,
		CoachGatewayAccountID: credential.Account.GatewayUserID,
		CoachEncryptedToken:   credential.Account.EncryptedToken,
	}
	if err := s.ledgerRepo.Create(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording purchase attempt")
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"ledger_record_id": record.ID.String(),
		"preference_id":    pref.ID,
	}), "checkout preference created")

	return &CheckoutResult{
		LedgerRecordID:    record.ID,
		PreferenceID:      pref.ID,
		InitPoint:         pref.InitPoint,
		ExternalReference: reference,
		Amount:            activity.Price,
		MarketplaceFee:    fee,
		SellerAmount:      record.SellerAmount,
	}, nil
}

// buildExternalReference produces pending_{activityId}_{clientId}_{epochMillis}.
// The value round-trips through the gateway and is the fallback
// correlation key during reconciliation.
func buildExternalReference(activityID, clientID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("pending_%s_%s_%d", activityID, clientID, at.UnixMilli())
}
