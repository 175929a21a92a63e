package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	webhookcontrollers "github.com/entrenaapp/entrena-backend/api/controllers/webhooks"
	"github.com/entrenaapp/entrena-backend/internal/payments"
	mpwebhook "github.com/entrenaapp/entrena-backend/internal/webhooks/mercadopago"
	pkgAuth "github.com/entrenaapp/entrena-backend/pkg/auth"
	"github.com/entrenaapp/entrena-backend/pkg/config"
	"github.com/entrenaapp/entrena-backend/pkg/enums"
	"github.com/entrenaapp/entrena-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubPaymentsService struct{}

func (stubPaymentsService) CreateCheckout(ctx context.Context, input payments.CreateCheckoutInput) (*payments.CheckoutResult, error) {
	return &payments.CheckoutResult{PreferenceID: "pref-router"}, nil
}

type stubWebhookService struct{ calls int }

func (s *stubWebhookService) HandleEvent(ctx context.Context, event *mpwebhook.WebhookEvent, raw json.RawMessage) (mpwebhook.Outcome, error) {
	s.calls++
	return mpwebhook.OutcomeIgnored, nil
}

var _ webhookcontrollers.MercadoPagoWebhookService = (*stubWebhookService)(nil)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "entrena-test",
			ExpirationMinutes: 5,
		},
	}
}

func newTestRouter(t *testing.T, webhookSvc *stubWebhookService) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
	return NewRouter(testConfig(), logg, stubPinger{}, stubPinger{}, stubPaymentsService{}, webhookSvc, prometheus.NewRegistry())
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, &stubWebhookService{})

	for _, path := range []string{"/health/live", "/health/ready", "/metrics", "/api/public/ping"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestRouterWebhookIsPublic(t *testing.T) {
	svc := &stubWebhookService{}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook",
		strings.NewReader(`{"type":"payment","data":{"id":"1"}}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.calls != 1 {
		t.Fatalf("expected webhook service to run, got %d calls", svc.calls)
	}
}

func TestRouterPreferenceRequiresAuth(t *testing.T) {
	router := newTestRouter(t, &stubWebhookService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/preference",
		strings.NewReader(`{"activity_id":"x"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", w.Code)
	}
}

func TestRouterPreferenceWithClientToken(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, &stubWebhookService{})

	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleClient,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	body := `{"activity_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/preference", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRouterPreferenceRejectsCoachRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, &stubWebhookService{})

	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleCoach,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/preference",
		strings.NewReader(`{"activity_id":"`+uuid.NewString()+`"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for coach role, got %d", w.Code)
	}
}
