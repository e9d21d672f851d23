package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scribewell/plugin-gateway/api/routes"
	"github.com/scribewell/plugin-gateway/internal/credits"
	"github.com/scribewell/plugin-gateway/internal/ledger"
	"github.com/scribewell/plugin-gateway/internal/operators"
	"github.com/scribewell/plugin-gateway/internal/packages"
	"github.com/scribewell/plugin-gateway/internal/payments"
	"github.com/scribewell/plugin-gateway/internal/ratelimit"
	"github.com/scribewell/plugin-gateway/internal/tenants"
	"github.com/scribewell/plugin-gateway/internal/usage"
	"github.com/scribewell/plugin-gateway/pkg/config"
	"github.com/scribewell/plugin-gateway/pkg/db"
	"github.com/scribewell/plugin-gateway/pkg/logger"
	"github.com/scribewell/plugin-gateway/pkg/metrics"
	"github.com/scribewell/plugin-gateway/pkg/migrate"
	"github.com/scribewell/plugin-gateway/pkg/redis"
	pkgstripe "github.com/scribewell/plugin-gateway/pkg/stripe"
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

	// Redis is optional: without it the gateway falls back to per-process
	// rate limiting.
	var redisClient *redis.Client
	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter()
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		limiter = ratelimit.NewRedisLimiter(redisClient)
	} else {
		logg.Warn(context.Background(), "redis not configured, using in-process rate limiting")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	gatewayMetrics := metrics.NewGatewayMetrics(registry)

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Payments, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe client", err)
		os.Exit(1)
	}

	tenantSvc, err := tenants.NewService(tenants.ServiceParams{
		Repo:   tenants.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create tenant service", err)
		os.Exit(1)
	}

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	ledgerSvc, err := ledger.NewService(ledgerRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	creditSvc, err := credits.NewService(credits.ServiceParams{
		DB:       dbClient,
		Accounts: credits.NewRepository(dbClient.DB()),
		Ledger:   ledgerRepo,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create credit service", err)
		os.Exit(1)
	}

	packageSvc, err := packages.NewService(packages.ServiceParams{
		Repo:   packages.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create package service", err)
		os.Exit(1)
	}
	if err := packageSvc.SeedDefaults(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to seed default packages", err)
		os.Exit(1)
	}

	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Repo:         payments.NewRepository(dbClient.DB()),
		Stripe:       payments.NewStripeClient(stripeClient),
		Packages:     packageSvc,
		Credits:      creditSvc,
		Ledger:       ledgerRepo,
		Metrics:      gatewayMetrics,
		Logger:       logg,
		IntentExpiry: cfg.Payments.IntentExpiry,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	usageSvc, err := usage.NewService(usage.ServiceParams{
		Repo:   usage.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create usage service", err)
		os.Exit(1)
	}

	operatorSvc, err := operators.NewService(operators.ServiceParams{
		Repo:     operators.NewRepository(dbClient.DB()),
		JWT:      cfg.JWT,
		Password: cfg.Password,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create operator service", err)
		os.Exit(1)
	}
	if cfg.Bootstrap.Enabled() {
		if err := operatorSvc.EnsureBootstrapAdmin(context.Background(), cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
			logg.Error(context.Background(), "failed to seed bootstrap admin", err)
			os.Exit(1)
		}
	}

	handler := routes.NewRouter(routes.Deps{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		Limiter:        limiter,
		Metrics:        gatewayMetrics,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Tenants:        tenantSvc,
		Credits:        creditSvc,
		Ledger:         ledgerSvc,
		Packages:       packageSvc,
		Payments:       paymentSvc,
		Usage:          usageSvc,
		Operators:      operatorSvc,
	})

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
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		graceCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logg.Error(graceCtx, "graceful shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
