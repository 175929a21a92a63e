package mercadopago

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/entrenaapp/entrena-backend/pkg/errors"
)

const (
	defaultRequestTimeout = 5 * time.Second
	maxResponseBytes      = 1 << 20
)

// PreferenceItem is a single line of a checkout preference.
type PreferenceItem struct {
	Title      string          `json:"title"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	CurrencyID string          `json:"currency_id"`
}

// BackURLs are the buyer-facing redirect targets after checkout.
type BackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

// PreferenceParams describes the checkout preference to create on the
// coach's account.
type PreferenceParams struct {
	Items             []PreferenceItem
	MarketplaceFee    decimal.Decimal
	ExternalReference string
	NotificationURL   string
	BackURLs          BackURLs
}

func (p PreferenceParams) validate() error {
	if len(p.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "preference requires at least one item")
	}
	for _, item := range p.Items {
		if strings.TrimSpace(item.Title) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "preference item title is required")
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "preference item quantity must be positive")
		}
		if !item.UnitPrice.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "preference item unit price must be positive")
		}
	}
	if strings.TrimSpace(p.ExternalReference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "external reference is required")
	}
	if p.MarketplaceFee.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeCommissionConfig, "marketplace fee cannot be negative")
	}
	return nil
}

type preferenceRequest struct {
	Items             []PreferenceItem `json:"items"`
	MarketplaceFee    decimal.Decimal  `json:"marketplace_fee"`
	ExternalReference string           `json:"external_reference"`
	NotificationURL   string           `json:"notification_url,omitempty"`
	BackURLs          *BackURLs        `json:"back_urls,omitempty"`
	AutoReturn        string           `json:"auto_return,omitempty"`
}

func (p PreferenceParams) toRequest() preferenceRequest {
	req := preferenceRequest{
		Items:             p.Items,
		MarketplaceFee:    p.MarketplaceFee,
		ExternalReference: p.ExternalReference,
		NotificationURL:   p.NotificationURL,
	}
	if p.BackURLs != (BackURLs{}) {
		urls := p.BackURLs
		req.BackURLs = &urls
		if urls.Success != "" {
			req.AutoReturn = "approved"
		}
	}
	return req
}

// Preference is the created checkout preference.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// Payment is the authoritative payment resource as reported by the
// gateway. PreferenceID and MarketplaceFee are absent on some payment
// types, so both stay optional.
type Payment struct {
	ID                json.Number      `json:"id"`
	Status            string           `json:"status"`
	StatusDetail      string           `json:"status_detail"`
	TransactionAmount decimal.Decimal  `json:"transaction_amount"`
	ExternalReference string           `json:"external_reference"`
	PreferenceID      *string          `json:"preference_id"`
	MarketplaceFee    *decimal.Decimal `json:"marketplace_fee"`
	DateApproved      *time.Time       `json:"date_approved"`
}

// Gateway payment statuses this system reacts to. Anything else is
// treated as still-pending.
const (
	PaymentStatusApproved  = "approved"
	PaymentStatusRejected  = "rejected"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusPending   = "pending"
	PaymentStatusInProcess = "in_process"
)
