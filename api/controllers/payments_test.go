package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/entrenaapp/entrena-backend/api/middleware"
	"github.com/entrenaapp/entrena-backend/internal/payments"
	pkgerrors "github.com/entrenaapp/entrena-backend/pkg/errors"
	"github.com/entrenaapp/entrena-backend/pkg/logger"
)

type stubPaymentsService struct {
	result *payments.CheckoutResult
	err    error
	got    payments.CreateCheckoutInput
	calls  int
}

func (s *stubPaymentsService) CreateCheckout(ctx context.Context, input payments.CreateCheckoutInput) (*payments.CheckoutResult, error) {
	s.calls++
	s.got = input
	return s.result, s.err
}

func paymentsTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
}

func postCheckout(t *testing.T, handler http.HandlerFunc, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/preference", strings.NewReader(body))
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestCreateCheckoutPreference(t *testing.T) {
	activityID := uuid.New()
	clientID := uuid.New()
	svc := &stubPaymentsService{result: &payments.CheckoutResult{
		LedgerRecordID: uuid.New(),
		PreferenceID:   "pref-1",
		InitPoint:      "https://mp.example/checkout/pref-1",
		Amount:         decimal.NewFromInt(1000),
		MarketplaceFee: decimal.NewFromInt(100),
	}}
	handler := CreateCheckoutPreference(svc, paymentsTestLogger())

	body := fmt.Sprintf(`{"activity_id":%q}`, activityID)
	w := postCheckout(t, handler, clientID.String(), body)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if svc.got.ActivityID != activityID {
		t.Fatalf("activity id not forwarded, got %s", svc.got.ActivityID)
	}
	if svc.got.ClientID != clientID {
		t.Fatalf("client id must come from the token context, got %s", svc.got.ClientID)
	}

	var resp struct {
		Data payments.CheckoutResult `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.InitPoint != "https://mp.example/checkout/pref-1" {
		t.Fatalf("unexpected init point %q", resp.Data.InitPoint)
	}
}

func TestCreateCheckoutPreferenceRequiresAuthenticatedUser(t *testing.T) {
	svc := &stubPaymentsService{}
	handler := CreateCheckoutPreference(svc, paymentsTestLogger())

	w := postCheckout(t, handler, "", `{"activity_id":"0f0e0d0c-0b0a-4908-8706-050403020100"}`)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user context, got %d", w.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("service must not run for anonymous requests")
	}
}

func TestCreateCheckoutPreferenceRejectsInvalidBody(t *testing.T) {
	svc := &stubPaymentsService{}
	handler := CreateCheckoutPreference(svc, paymentsTestLogger())

	w := postCheckout(t, handler, uuid.NewString(), `{"unknown_field":true}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid body, got %d", w.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("service must not run for invalid bodies")
	}
}

func TestCreateCheckoutPreferenceSurfacesCoachNotConfigured(t *testing.T) {
	svc := &stubPaymentsService{err: pkgerrors.New(pkgerrors.CodeCoachNotConfigured, "coach has not connected mercadopago")}
	handler := CreateCheckoutPreference(svc, paymentsTestLogger())

	body := fmt.Sprintf(`{"activity_id":%q}`, uuid.New())
	w := postCheckout(t, handler, uuid.NewString(), body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Code != string(pkgerrors.CodeCoachNotConfigured) {
		t.Fatalf("unexpected error code %s", resp.Error.Code)
	}
}
