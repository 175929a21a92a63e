package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/entrenaapp/entrena-backend/api/controllers"
	webhookcontrollers "github.com/entrenaapp/entrena-backend/api/controllers/webhooks"
	"github.com/entrenaapp/entrena-backend/api/middleware"
	"github.com/entrenaapp/entrena-backend/internal/payments"
	"github.com/entrenaapp/entrena-backend/pkg/config"
	"github.com/entrenaapp/entrena-backend/pkg/db"
	"github.com/entrenaapp/entrena-backend/pkg/enums"
	"github.com/entrenaapp/entrena-backend/pkg/logger"
	"github.com/entrenaapp/entrena-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	paymentsService payments.Service,
	webhookService webhookcontrollers.MercadoPagoWebhookService,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		// The gateway posts here; authenticity comes from the payment
		// re-fetch inside the service, not from request auth.
		r.Post("/webhook", webhookcontrollers.MercadoPagoWebhook(webhookService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireRole(string(enums.UserRoleClient), logg))
			r.Get("/ping", controllers.PrivatePing())
			r.Post("/preference", controllers.CreateCheckoutPreference(paymentsService, logg))
		})
	})

	return r
}
