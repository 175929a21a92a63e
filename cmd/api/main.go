package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/entrenaapp/entrena-backend/api/routes"
	"github.com/entrenaapp/entrena-backend/internal/activities"
	"github.com/entrenaapp/entrena-backend/internal/coachaccounts"
	"github.com/entrenaapp/entrena-backend/internal/enrollments"
	"github.com/entrenaapp/entrena-backend/internal/ledger"
	"github.com/entrenaapp/entrena-backend/internal/payments"
	"github.com/entrenaapp/entrena-backend/internal/programs"
	mpwebhook "github.com/entrenaapp/entrena-backend/internal/webhooks/mercadopago"
	"github.com/entrenaapp/entrena-backend/pkg/commission"
	"github.com/entrenaapp/entrena-backend/pkg/config"
	"github.com/entrenaapp/entrena-backend/pkg/db"
	"github.com/entrenaapp/entrena-backend/pkg/logger"
	"github.com/entrenaapp/entrena-backend/pkg/mercadopago"
	"github.com/entrenaapp/entrena-backend/pkg/metrics"
	"github.com/entrenaapp/entrena-backend/pkg/migrate"
	"github.com/entrenaapp/entrena-backend/pkg/redis"
	"github.com/entrenaapp/entrena-backend/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sealer, err := security.NewTokenSealer(cfg.Vault)
	if err != nil {
		logg.Error(context.Background(), "failed to create token sealer", err)
		os.Exit(1)
	}

	vault, err := coachaccounts.NewVault(coachaccounts.NewRepository(dbClient.DB()), sealer)
	if err != nil {
		logg.Error(context.Background(), "failed to create credential vault", err)
		os.Exit(1)
	}

	commissionCalc, err := commission.NewCalculator(cfg.Commission)
	if err != nil {
		logg.Error(context.Background(), "failed to create commission calculator", err)
		os.Exit(1)
	}

	gatewayClient, err := mercadopago.NewClient(context.Background(), cfg.MercadoPago, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create mercadopago client", err)
		os.Exit(1)
	}

	ledgerRepo := ledger.NewRepository(dbClient.DB())

	paymentsService, err := payments.NewService(payments.ServiceParams{
		ActivityRepo: activities.NewRepository(dbClient.DB()),
		Vault:        vault,
		Commission:   commissionCalc,
		Gateway:      gatewayClient,
		LedgerRepo:   ledgerRepo,
		Gateways:     cfg.MercadoPago,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	resolver, err := ledger.NewResolver(ledgerRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger resolver", err)
		os.Exit(1)
	}

	activator, err := enrollments.NewActivator(enrollments.ActivatorParams{
		EnrollmentRepo: enrollments.NewRepository(dbClient.DB()),
		LedgerRepo:     ledgerRepo,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create enrollment activator", err)
		os.Exit(1)
	}

	duplicator, err := programs.NewDuplicator(programs.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create program duplicator", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()

	webhookService, err := mpwebhook.NewService(mpwebhook.ServiceParams{
		GatewayClient:     gatewayClient,
		Resolver:          resolver,
		LedgerRepo:        ledgerRepo,
		Activator:         activator,
		Duplicator:        duplicator,
		TransactionRunner: dbClient,
		Dedup:             redisClient,
		Metrics:           metrics.NewWebhookMetrics(registry),
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, paymentsService, webhookService, registry),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
