package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/entrenaapp/entrena-backend/pkg/config"
	pkgerrors "github.com/entrenaapp/entrena-backend/pkg/errors"
	"github.com/entrenaapp/entrena-backend/pkg/logger"
)

var (
	errPlatformTokenRequired = errors.New("mercadopago platform access token is required")
	errBaseURLRequired       = errors.New("mercadopago base url is required")
	errLoggerRequired        = errors.New("mercadopago logger is required")

	// ErrPaymentNotFound marks a payment id the gateway does not know.
	// Sandbox test notifications reference payments that never existed;
	// callers treat this as benign.
	ErrPaymentNotFound = errors.New("mercadopago payment not found")
)

// Client wraps MercadoPago's REST API with centralized auth, logging,
// timeouts, and error mapping. Preference creation runs under the selling
// coach's token; payment lookups always use the platform's own token.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	platformToken string
	logger        *logger.Logger
}

// NewClient validates the configuration and returns the gateway wrapper.
func NewClient(ctx context.Context, cfg config.MercadoPagoConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}

	platformToken := strings.TrimSpace(cfg.PlatformAccessToken)
	if platformToken == "" {
		return nil, errPlatformTokenRequired
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		platformToken: platformToken,
		logger:        logg,
	}

	logg.Info(ctx, "mercadopago client initialized")
	return c, nil
}

// CreatePreference registers a checkout preference on the coach's gateway
// account. The coach token authenticates the call so the split lands on
// the coach's collector account with the marketplace fee withheld.
func (c *Client) CreatePreference(ctx context.Context, coachToken string, params PreferenceParams) (*Preference, error) {
	if strings.TrimSpace(coachToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeCoachNotConfigured, "coach access token is required")
	}
	if err := params.validate(); err != nil {
		return nil, err
	}

	c.log(ctx, "request", "create_preference", map[string]any{
		"external_reference": params.ExternalReference,
		"marketplace_fee":    params.MarketplaceFee.String(),
	})

	var pref Preference
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", coachToken, params.toRequest(), &pref); err != nil {
		c.log(ctx, "error", "create_preference", map[string]any{"error": err.Error()})
		return nil, c.mapGatewayError(err, "create preference")
	}

	c.log(ctx, "response", "create_preference", map[string]any{
		"preference_id": pref.ID,
	})
	return &pref, nil
}

// GetPayment fetches the authoritative payment resource with the
// platform's own credential.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	c.log(ctx, "request", "get_payment", map[string]any{"payment_id": paymentID})

	var payment Payment
	err := c.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, c.platformToken, nil, &payment)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrPaymentNotFound
		}
		c.log(ctx, "error", "get_payment", map[string]any{"error": err.Error()})
		return nil, c.mapGatewayError(err, "get payment")
	}

	c.log(ctx, "response", "get_payment", map[string]any{
		"payment_id": payment.ID.String(),
		"status":     payment.Status,
	})
	return &payment, nil
}

type apiError struct {
	StatusCode int
	Message    string `json:"message"`
	ErrorCode  string `json:"error"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("mercadopago api status %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling gateway: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gwErr := &apiError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(payload, gwErr)
		if gwErr.Message == "" {
			gwErr.Message = strings.TrimSpace(string(payload))
		}
		return gwErr
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("decoding gateway response: %w", err)
	}
	return nil
}

func (c *Client) mapGatewayError(err error, op string) error {
	if err == nil {
		return nil
	}
	var gwErr *apiError
	if errors.As(err, &gwErr) {
		return pkgerrors.Wrap(domainCodeForStatus(gwErr.StatusCode), err, fmt.Sprintf("mercadopago %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("mercadopago %s failed", op))
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeUnauthorized
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("mercadopago %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("mercadopago %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "email", "phone", "card"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
