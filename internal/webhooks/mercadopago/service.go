package mpwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entrenaapp/entrena-backend/internal/enrollments"
	"github.com/entrenaapp/entrena-backend/internal/ledger"
	"github.com/entrenaapp/entrena-backend/internal/programs"
	"github.com/entrenaapp/entrena-backend/pkg/db/models"
	"github.com/entrenaapp/entrena-backend/pkg/enums"
	pkgerrors "github.com/entrenaapp/entrena-backend/pkg/errors"
	"github.com/entrenaapp/entrena-backend/pkg/logger"
	"github.com/entrenaapp/entrena-backend/pkg/mercadopago"
	"github.com/entrenaapp/entrena-backend/pkg/metrics"
)

// Gateway is the label used on metrics and dedup keys.
const Gateway = "mercadopago"

const dedupTTL = 24 * time.Hour

// Outcome classifies what a delivery did.
type Outcome string

const (
	OutcomeActivated Outcome = "activated"
	OutcomeUpdated   Outcome = "updated"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUnmatched Outcome = "unmatched"
)

// WebhookEvent is the notification body MercadoPago posts. Only the
// payment id inside data is trusted; everything else is re-fetched from
// the gateway with the platform credential.
type WebhookEvent struct {
	ID     json.Number      `json:"id"`
	Type   string           `json:"type"`
	Action string           `json:"action"`
	Data   WebhookEventData `json:"data"`
}

type WebhookEventData struct {
	ID string `json:"id"`
}

type paymentFetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

type dedupStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookSeenKey(gateway, eventID string) string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	GatewayClient     paymentFetcher
	Resolver          ledger.Resolver
	LedgerRepo        ledger.Repository
	Activator         enrollments.Activator
	Duplicator        programs.Duplicator
	TransactionRunner txRunner
	Dedup             dedupStore // optional, best-effort
	Metrics           *metrics.WebhookMetrics
	Logger            *logger.Logger
}

// Service reconciles payment notifications against the ledger. It is
// safe under at-least-once, out-of-order delivery: every step is
// idempotent and concurrent deliveries for one purchase serialize on the
// ledger row lock.
type Service struct {
	gateway    paymentFetcher
	resolver   ledger.Resolver
	ledgerRepo ledger.Repository
	activator  enrollments.Activator
	duplicator programs.Duplicator
	txRunner   txRunner
	dedup      dedupStore
	metrics    *metrics.WebhookMetrics
	logger     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.GatewayClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway client required")
	}
	if params.Resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger resolver required")
	}
	if params.LedgerRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repo required")
	}
	if params.Activator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "enrollment activator required")
	}
	if params.Duplicator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "program duplicator required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		gateway:    params.GatewayClient,
		resolver:   params.Resolver,
		ledgerRepo: params.LedgerRepo,
		activator:  params.Activator,
		duplicator: params.Duplicator,
		txRunner:   params.TransactionRunner,
		dedup:      params.Dedup,
		metrics:    params.Metrics,
		logger:     params.Logger,
	}, nil
}

// HandleEvent processes one MercadoPago notification. The raw payload is
// persisted on the matched ledger record for audit.
func (s *Service) HandleEvent(ctx context.Context, event *WebhookEvent, raw json.RawMessage) (Outcome, error) {
	started := time.Now()
	s.metrics.IncReceived(Gateway)
	defer func() {
		s.metrics.ObserveDuration(Gateway, time.Since(started))
	}()

	if event == nil {
		return OutcomeIgnored, pkgerrors.New(pkgerrors.CodeValidation, "event required")
	}
	if !strings.EqualFold(event.Type, "payment") {
		s.metrics.IncOutcome(Gateway, string(OutcomeIgnored))
		return OutcomeIgnored, nil
	}
	paymentID := strings.TrimSpace(event.Data.ID)
	if paymentID == "" {
		return OutcomeIgnored, pkgerrors.New(pkgerrors.CodeValidation, "payment id missing from event data")
	}

	ctx = s.logger.WithPaymentID(ctx, paymentID)

	// The notification body is untrusted. Authenticity comes from
	// re-fetching the payment with the platform's own credential.
	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, mercadopago.ErrPaymentNotFound) {
			s.logger.Info(ctx, "payment unknown to gateway, ignoring delivery")
			s.metrics.IncOutcome(Gateway, string(OutcomeIgnored))
			return OutcomeIgnored, nil
		}
		s.metrics.IncOutcome(Gateway, "failed")
		return OutcomeIgnored, err
	}

	// Dedup only after the fetch, keyed on the authoritative status: the
	// gateway redelivers status transitions under the same action, and a
	// pending delivery must never swallow the later approved one.
	dedupKey, fresh := s.markSeen(ctx, paymentID, payment.Status)
	if !fresh {
		s.logger.Info(ctx, "webhook already processed, skipping")
		s.metrics.IncOutcome(Gateway, string(OutcomeDuplicate))
		return OutcomeDuplicate, nil
	}

	outcome, err := s.reconcile(ctx, payment, raw)
	if err != nil {
		// Release the dedup slot so a redelivery gets another attempt.
		s.unmarkSeen(ctx, dedupKey)
		s.metrics.IncOutcome(Gateway, "failed")
		return outcome, err
	}

	s.metrics.IncOutcome(Gateway, string(outcome))
	return outcome, nil
}

func (s *Service) reconcile(ctx context.Context, payment *mercadopago.Payment, raw json.RawMessage) (Outcome, error) {
	status := mapPaymentStatus(payment.Status)

	record, err := s.resolver.Resolve(ctx, ledger.LookupKeys{
		PreferenceID:      derefString(payment.PreferenceID),
		ExternalReference: payment.ExternalReference,
		GatewayPaymentID:  payment.ID.String(),
	})
	if err != nil {
		return OutcomeIgnored, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolving ledger record")
	}
	if record == nil {
		s.logger.Warn(s.logger.WithFields(ctx, map[string]any{
			"external_reference": payment.ExternalReference,
			"status":             payment.Status,
		}), "no ledger record matches payment, manual review needed")
		return OutcomeUnmatched, nil
	}

	var activated bool
	var activityID, enrollmentID = record.ActivityID, record.EnrollmentID

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.ledgerRepo.WithTx(tx)
		locked, lockErr := repo.FindByIDForUpdate(ctx, record.ID)
		if lockErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, lockErr, "locking ledger record")
		}
		if locked == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "ledger record disappeared")
		}

		applyPayment(locked, payment, status, raw)

		outcome, applyErr := s.activator.Apply(ctx, tx, locked, status)
		if applyErr != nil {
			return applyErr
		}
		activated = outcome.ActivatedNow
		enrollmentID = locked.EnrollmentID
		activityID = locked.ActivityID

		if updateErr := repo.Update(ctx, locked); updateErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, updateErr, "updating ledger record")
		}
		return nil
	})
	if err != nil {
		return OutcomeIgnored, err
	}

	if activated {
		s.metrics.IncActivation(Gateway)
		s.copyProgram(ctx, activityID, enrollmentID)
		return OutcomeActivated, nil
	}
	return OutcomeUpdated, nil
}

// applyPayment folds the authoritative gateway payment into the locked
// record. A completed record never regresses: late pending or rejected
// notifications only refresh audit fields.
func applyPayment(record *models.LedgerRecord, payment *mercadopago.Payment, status enums.PaymentStatus, raw json.RawMessage) {
	gatewayPaymentID := payment.ID.String()
	record.GatewayPaymentID = &gatewayPaymentID
	record.WebhookReceived = true
	if len(raw) > 0 {
		record.LastWebhookPayload = raw
	}
	if payment.StatusDetail != "" {
		detail := payment.StatusDetail
		record.StatusDetail = &detail
	}

	if record.PaymentStatus == enums.PaymentStatusCompleted && status != enums.PaymentStatusCompleted {
		return
	}
	record.PaymentStatus = status

	if payment.TransactionAmount.IsPositive() {
		record.AmountPaid = payment.TransactionAmount
	}
	if payment.MarketplaceFee != nil && !payment.MarketplaceFee.IsNegative() {
		record.MarketplaceFee = *payment.MarketplaceFee
	}
	record.SellerAmount = record.AmountPaid.Sub(record.MarketplaceFee)
}

// mapPaymentStatus folds gateway statuses onto the ledger's vocabulary.
// in_process and anything unknown stay pending until the gateway settles.
func mapPaymentStatus(gatewayStatus string) enums.PaymentStatus {
	switch strings.ToLower(gatewayStatus) {
	case mercadopago.PaymentStatusApproved:
		return enums.PaymentStatusCompleted
	case mercadopago.PaymentStatusRejected:
		return enums.PaymentStatusFailed
	case mercadopago.PaymentStatusCancelled:
		return enums.PaymentStatusCancelled
	default:
		return enums.PaymentStatusPending
	}
}

func (s *Service) copyProgram(ctx context.Context, activityID uuid.UUID, enrollmentID *uuid.UUID) {
	if enrollmentID == nil {
		return
	}
	copied, err := s.duplicator.CopyTemplate(ctx, activityID, *enrollmentID)
	if err != nil {
		// Program duplication is best-effort: the enrollment is already
		// active and a support job can backfill the copy.
		s.logger.Warn(s.logger.WithFields(ctx, map[string]any{
			"activity_id":   activityID.String(),
			"enrollment_id": enrollmentID.String(),
			"error":         err.Error(),
		}), "program template copy failed")
		return
	}
	if copied > 0 {
		s.logger.Info(s.logger.WithField(ctx, "copied_rows", copied), "program template copied for enrollment")
	}
}

func (s *Service) markSeen(ctx context.Context, paymentID, gatewayStatus string) (string, bool) {
	if s.dedup == nil {
		return "", true
	}
	eventID := paymentID + ":" + strings.ToLower(gatewayStatus)
	key := s.dedup.WebhookSeenKey(Gateway, eventID)
	fresh, err := s.dedup.SetNX(ctx, key, "1", dedupTTL)
	if err != nil {
		// Dedup is an optimization only; reconciliation is idempotent.
		s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "webhook dedup check failed, processing anyway")
		return "", true
	}
	return key, fresh
}

func (s *Service) unmarkSeen(ctx context.Context, key string) {
	if s.dedup == nil || key == "" {
		return
	}
	if err := s.dedup.Del(ctx, key); err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "releasing webhook dedup key failed")
	}
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
