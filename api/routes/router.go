package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scribewell/plugin-gateway/api/controllers"
	"github.com/scribewell/plugin-gateway/api/middleware"
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
	"github.com/scribewell/plugin-gateway/pkg/enums"
	"github.com/scribewell/plugin-gateway/pkg/logger"
	"github.com/scribewell/plugin-gateway/pkg/metrics"
	"github.com/scribewell/plugin-gateway/pkg/redis"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          *redis.Client
	Limiter        ratelimit.Limiter
	Metrics        *metrics.GatewayMetrics
	MetricsHandler http.Handler

	Tenants   tenants.Service
	Credits   credits.Service
	Ledger    ledger.Service
	Packages  packages.Service
	Payments  payments.Service
	Usage     usage.Service
	Operators operators.Service
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	tenantPolicy := middleware.RateLimitPolicy{
		Name:   "tenant",
		Limit:  cfg.RateLimit.TenantLimit,
		Window: cfg.RateLimit.TenantWindow,
	}
	registerPolicy := middleware.RateLimitPolicy{
		Name:   "register",
		Limit:  cfg.RateLimit.RegisterLimit,
		Window: cfg.RateLimit.RegisterWindow,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, d.DB, d.Redis))
	})

	if d.MetricsHandler != nil {
		r.Handle("/metrics", d.MetricsHandler)
	}

	// Registration is the only unauthenticated plugin endpoint. It throttles
	// per client address because no tenant identity exists yet.
	r.With(middleware.IPRateLimit(d.Limiter, registerPolicy, d.Metrics, logg)).
		Post("/v1/plugin/register", controllers.PluginRegister(d.Tenants, logg))

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.TenantAuth(d.Tenants, logg))
		r.Use(middleware.TenantRateLimit(d.Limiter, tenantPolicy, d.Metrics, logg))

		r.Get("/ping", controllers.PluginPing())

		r.Route("/credits", func(r chi.Router) {
			r.Get("/", controllers.CreditBalances(d.Credits, logg))
			r.Post("/deduct", controllers.CreditDeduct(d.Credits, logg))
			r.Get("/history", controllers.CreditHistory(d.Ledger, logg))
		})

		r.Get("/packages", controllers.PackageList(d.Packages, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Post("/intent", controllers.PaymentCreateIntent(d.Payments, logg))
			r.Post("/confirm", controllers.PaymentConfirm(d.Payments, logg))
		})

		r.Route("/usage", func(r chi.Router) {
			r.Post("/", controllers.UsageRecord(d.Usage, logg))
			r.Get("/report", controllers.UsageReport(d.Usage, logg))
		})
	})

	r.Route("/admin/v1", func(r chi.Router) {
		r.With(middleware.IPRateLimit(d.Limiter, registerPolicy, d.Metrics, logg)).
			Post("/auth/login", controllers.AdminLogin(d.Operators, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.OperatorAuth(cfg.JWT, logg))

			r.Route("/tenants", func(r chi.Router) {
				r.Get("/", controllers.AdminTenantList(d.Tenants, logg))
				r.Get("/{tenantID}", controllers.AdminTenantGet(d.Tenants, logg))
				r.Get("/{tenantID}/balances", controllers.AdminTenantBalances(d.Credits, logg))
				r.Get("/{tenantID}/ledger", controllers.AdminTenantLedger(d.Ledger, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(enums.OperatorRoleAdmin, logg))
					r.Post("/{tenantID}/deactivate", controllers.AdminTenantDeactivate(d.Tenants, logg))
					r.Post("/{tenantID}/reactivate", controllers.AdminTenantReactivate(d.Tenants, logg))
					r.Post("/{tenantID}/credits/grant", controllers.AdminGrantCredits(d.Credits, logg))
				})
			})

			r.Route("/packages", func(r chi.Router) {
				r.Get("/", controllers.AdminPackageList(d.Packages, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(enums.OperatorRoleAdmin, logg))
					r.Post("/", controllers.AdminPackageSave(d.Packages, logg))
					r.Post("/{packageID}/deactivate", controllers.AdminPackageDeactivate(d.Packages, logg))
				})
			})

			r.Route("/operators", func(r chi.Router) {
				r.Get("/", controllers.AdminOperatorList(d.Operators, logg))
				r.With(middleware.RequireRole(enums.OperatorRoleAdmin, logg)).
					Post("/", controllers.AdminOperatorCreate(d.Operators, logg))
			})

			r.With(middleware.RequireRole(enums.OperatorRoleAdmin, logg)).
				Post("/reconcile", controllers.AdminReconcileRun(d.Payments, logg))
		})
	})

	return r
}
