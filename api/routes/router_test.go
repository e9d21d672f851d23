package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribewell/plugin-gateway/internal/credits"
	"github.com/scribewell/plugin-gateway/internal/ledger"
	"github.com/scribewell/plugin-gateway/internal/operators"
	"github.com/scribewell/plugin-gateway/internal/packages"
	"github.com/scribewell/plugin-gateway/internal/payments"
	"github.com/scribewell/plugin-gateway/internal/ratelimit"
	"github.com/scribewell/plugin-gateway/internal/tenants"
	"github.com/scribewell/plugin-gateway/internal/usage"
	pkgauth "github.com/scribewell/plugin-gateway/pkg/auth"
	"github.com/scribewell/plugin-gateway/pkg/config"
	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubTenants struct {
	tenant *models.Tenant
}

func (s *stubTenants) Register(context.Context, tenants.RegisterInput) (*tenants.RegisterResult, error) {
	return &tenants.RegisterResult{Tenant: s.tenant, Created: true}, nil
}
func (s *stubTenants) Authenticate(_ context.Context, token, instanceID string) (*models.Tenant, error) {
	if token == s.tenant.APIToken && instanceID == s.tenant.InstanceID {
		return s.tenant, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
}
func (s *stubTenants) TouchActivity(context.Context, uuid.UUID)    {}
func (s *stubTenants) Deactivate(context.Context, uuid.UUID) error { return nil }
func (s *stubTenants) Reactivate(context.Context, uuid.UUID) error { return nil }
func (s *stubTenants) Get(context.Context, uuid.UUID) (*models.Tenant, error) {
	return s.tenant, nil
}
func (s *stubTenants) List(context.Context, pagination.Params) ([]models.Tenant, string, error) {
	return []models.Tenant{*s.tenant}, "", nil
}

type stubCredits struct{}

func (stubCredits) Deduct(context.Context, credits.DeductInput) (*credits.MovementResult, error) {
	return &credits.MovementResult{BalanceAfter: 9, Transaction: &models.CreditTransaction{ID: uuid.New()}}, nil
}
func (stubCredits) Grant(context.Context, credits.GrantInput) (*credits.MovementResult, error) {
	return &credits.MovementResult{BalanceAfter: 10, Transaction: &models.CreditTransaction{ID: uuid.New()}}, nil
}
func (stubCredits) Balances(_ context.Context, _ uuid.UUID, endUserID int64) (*models.CreditAccount, error) {
	return &models.CreditAccount{EndUserID: endUserID}, nil
}
func (stubCredits) AccountsForTenant(context.Context, uuid.UUID) ([]models.CreditAccount, error) {
	return nil, nil
}

type stubLedger struct{}

func (stubLedger) HistoryForUser(context.Context, uuid.UUID, int64, pagination.Params) ([]models.CreditTransaction, string, error) {
	return nil, "", nil
}
func (stubLedger) HistoryForTenant(context.Context, uuid.UUID, pagination.Params) ([]models.CreditTransaction, string, error) {
	return nil, "", nil
}
func (stubLedger) Rollup(context.Context, uuid.UUID) ([]ledger.RollupRow, error) {
	return nil, nil
}

type stubPackages struct{}

func (stubPackages) ListActive(context.Context) ([]models.CreditPackage, error) { return nil, nil }
func (stubPackages) ListAll(context.Context) ([]models.CreditPackage, error)    { return nil, nil }
func (stubPackages) Get(context.Context, string) (*models.CreditPackage, error) { return nil, nil }
func (stubPackages) Save(context.Context, packages.SaveInput) (*models.CreditPackage, error) {
	return nil, nil
}
func (stubPackages) Deactivate(context.Context, string) error { return nil }
func (stubPackages) SeedDefaults(context.Context) error       { return nil }

type stubPayments struct{}

func (stubPayments) CreateIntent(context.Context, payments.CreateIntentInput) (*payments.CreateIntentResult, error) {
	return &payments.CreateIntentResult{StripeIntentID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}
func (stubPayments) Confirm(context.Context, payments.ConfirmInput) (*payments.ConfirmResult, error) {
	return &payments.ConfirmResult{CreditsGranted: 10, BalanceAfter: 10, Kind: enums.CreditKindArticle}, nil
}
func (stubPayments) Reconcile(context.Context) (int, error) { return 0, nil }
func (stubPayments) ListForTenant(context.Context, uuid.UUID, int) ([]models.PaymentIntent, error) {
	return nil, nil
}

type stubUsage struct{}

func (stubUsage) Record(context.Context, usage.RecordInput) {}
func (stubUsage) List(context.Context, uuid.UUID, pagination.Params) ([]models.UsageRecord, string, error) {
	return nil, "", nil
}
func (stubUsage) Report(context.Context, uuid.UUID, time.Time, time.Time) ([]usage.ReportRow, error) {
	return nil, nil
}

type stubOperators struct{}

func (stubOperators) Login(context.Context, operators.LoginInput) (*operators.LoginResult, error) {
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")
}
func (stubOperators) Create(context.Context, operators.CreateInput) (*models.Operator, error) {
	return nil, nil
}
func (stubOperators) List(context.Context) ([]models.Operator, error) { return nil, nil }

func (stubOperators) EnsureBootstrapAdmin(context.Context, string, string) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{Secret: "router-test-secret", Issuer: "plugin-gateway-test", ExpirationMinutes: 60},
		RateLimit: config.RateLimitConfig{
			TenantWindow:   time.Minute,
			TenantLimit:    100,
			RegisterWindow: time.Minute,
			RegisterLimit:  100,
		},
	}
}

func testRouter(t *testing.T) (http.Handler, *models.Tenant) {
	t.Helper()
	tenant := &models.Tenant{
		ID:         uuid.New(),
		InstanceID: "wp-site-7f3a2b9c",
		APIToken:   "swp_test_token",
		Status:     enums.TenantStatusActive,
	}
	handler := NewRouter(Deps{
		Config:    testConfig(),
		Logger:    nil,
		DB:        stubPinger{},
		Limiter:   ratelimit.NewMemoryLimiter(),
		Tenants:   &stubTenants{tenant: tenant},
		Credits:   stubCredits{},
		Ledger:    stubLedger{},
		Packages:  stubPackages{},
		Payments:  stubPayments{},
		Usage:     stubUsage{},
		Operators: stubOperators{},
	})
	return handler, tenant
}

func TestHealthLive(t *testing.T) {
	handler, _ := testRouter(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Scribewell-Env"))
}

func TestHealthReady(t *testing.T) {
	handler, _ := testRouter(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPluginRoutesRequireAuth(t *testing.T) {
	handler, _ := testRouter(t)

	paths := []struct {
		method string
		path   string
	}{
		{"GET", "/v1/ping"},
		{"GET", "/v1/credits?end_user_id=1"},
		{"POST", "/v1/credits/deduct"},
		{"GET", "/v1/packages"},
		{"POST", "/v1/payments/intent"},
		{"POST", "/v1/usage"},
	}
	for _, p := range paths {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(p.method, p.path, nil))
		assert.Equalf(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestAuthenticatedPluginFlow(t *testing.T) {
	handler, tenant := testRouter(t)

	req := httptest.NewRequest("GET", "/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer "+tenant.APIToken)
	req.Header.Set("X-Instance-Id", tenant.InstanceID)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutesRequireOperatorToken(t *testing.T) {
	handler, _ := testRouter(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/admin/v1/tenants", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoleEnforcement(t *testing.T) {
	handler, _ := testRouter(t)
	cfg := testConfig()

	supportToken, err := pkgauth.MintOperatorToken(cfg.JWT, time.Now(), pkgauth.OperatorTokenPayload{
		OperatorID: uuid.New(),
		Email:      "support@scribewell.io",
		Role:       enums.OperatorRoleSupport,
	})
	require.NoError(t, err)

	// Support can read.
	req := httptest.NewRequest("GET", "/admin/v1/tenants", nil)
	req.Header.Set("Authorization", "Bearer "+supportToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Support cannot run the reconcile sweep.
	req = httptest.NewRequest("POST", "/admin/v1/reconcile", nil)
	req.Header.Set("Authorization", "Bearer "+supportToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
