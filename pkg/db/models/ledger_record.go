package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/entrenaapp/entrena-backend/pkg/enums"
)

// LedgerRecord captures one purchase attempt, written before any money
// moves and mutated only by webhook reconciliation. Rows are never
// deleted. The coach's gateway identity is snapshotted at creation so
// reconciliation does not depend on mutable coach configuration.
type LedgerRecord struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ActivityID   uuid.UUID  `gorm:"column:activity_id;type:uuid;not null;index"`
	ClientID     uuid.UUID  `gorm:"column:client_id;type:uuid;not null;index"`
	EnrollmentID *uuid.UUID `gorm:"column:enrollment_id;type:uuid"`

	AmountPaid     decimal.Decimal `gorm:"column:amount_paid;type:numeric(12,2);not null"`
	MarketplaceFee decimal.Decimal `gorm:"column:marketplace_fee;type:numeric(12,2);not null"`
	SellerAmount   decimal.Decimal `gorm:"column:seller_amount;type:numeric(12,2);not null"`

	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	StatusDetail  *string             `gorm:"column:status_detail"`

	// external_reference follows pending_{activityId}_{clientId}_{epochMillis}
	// and is a wire contract: it round-trips through the gateway and serves
	// as the fallback correlation key.
	ExternalReference   string  `gorm:"column:external_reference;not null;unique"`
	GatewayPreferenceID *string `gorm:"column:gateway_preference_id;index"`
	GatewayPaymentID    *string `gorm:"column:gateway_payment_id;index"`

	CoachGatewayAccountID string `gorm:"column:coach_gateway_account_id;not null"`
	CoachEncryptedToken   string `gorm:"column:coach_encrypted_token;not null"`

	WebhookReceived    bool            `gorm:"column:webhook_received;not null;default:false"`
	LastWebhookPayload json.RawMessage `gorm:"column:last_webhook_payload;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (LedgerRecord) TableName() string {
	return "ledger_records"
}
