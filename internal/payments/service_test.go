package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/scribewell/plugin-gateway/internal/credits"
	"github.com/scribewell/plugin-gateway/internal/ledger"
	"github.com/scribewell/plugin-gateway/internal/packages"
	"github.com/scribewell/plugin-gateway/pkg/db"
	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
	"github.com/scribewell/plugin-gateway/pkg/metrics"
)

type fakeStripe struct {
	nextID   int
	statuses map[string]stripe.PaymentIntentStatus
	getErr   error
}

func newFakeStripe() *fakeStripe {
	return &fakeStripe{statuses: map[string]stripe.PaymentIntentStatus{}}
}

func (f *fakeStripe) Create(_ context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.nextID++
	id := fmt.Sprintf("pi_test_%d", f.nextID)
	f.statuses[id] = stripe.PaymentIntentStatusRequiresPaymentMethod
	return &stripe.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		Amount:       *params.Amount,
	}, nil
}

func (f *fakeStripe) Get(_ context.Context, id string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	status, ok := f.statuses[id]
	if !ok {
		return nil, fmt.Errorf("no such payment_intent: %s", id)
	}
	return &stripe.PaymentIntent{ID: id, Status: status}, nil
}

func (f *fakeStripe) succeed(id string) {
	f.statuses[id] = stripe.PaymentIntentStatusSucceeded
}

type paymentsFixture struct {
	svc     Service
	stripe  *fakeStripe
	conn    *gorm.DB
	credits credits.Service
}

func setupPayments(t *testing.T) *paymentsFixture {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:payments_test_"+t.Name()+"?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{`
CREATE TABLE IF NOT EXISTS credit_accounts (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  end_user_id INTEGER NOT NULL,
  article_credits INTEGER NOT NULL DEFAULT 0 CHECK (article_credits >= 0),
  image_credits INTEGER NOT NULL DEFAULT 0 CHECK (image_credits >= 0),
  rewrite_credits INTEGER NOT NULL DEFAULT 0 CHECK (rewrite_credits >= 0),
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (tenant_id, end_user_id)
);`, `
CREATE TABLE IF NOT EXISTS credit_transactions (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  end_user_id INTEGER NOT NULL,
  type TEXT NOT NULL,
  kind TEXT NOT NULL,
  amount INTEGER NOT NULL,
  balance_after INTEGER NOT NULL,
  reference_id TEXT,
  description TEXT NOT NULL,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS credit_packages (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  credits INTEGER NOT NULL,
  price NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'usd',
  active INTEGER NOT NULL DEFAULT 1,
  display_name TEXT NOT NULL,
  description TEXT,
  sort_order INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS payment_intents (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  end_user_id INTEGER NOT NULL,
  stripe_intent_id TEXT NOT NULL UNIQUE,
  package_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'usd',
  status TEXT NOT NULL DEFAULT 'created',
  confirmed_at DATETIME,
  expires_at DATETIME NOT NULL,
  created_at DATETIME
);`}
	for _, stmt := range ddl {
		require.NoError(t, conn.Exec(stmt).Error)
	}

	logg := logger.New(logger.Options{ServiceName: "test"})

	pkgSvc, err := packages.NewService(packages.ServiceParams{
		Repo:   packages.NewRepository(conn),
		Logger: logg,
	})
	require.NoError(t, err)
	require.NoError(t, pkgSvc.SeedDefaults(context.Background()))

	creditSvc, err := credits.NewService(credits.ServiceParams{
		DB:       db.FromConn(conn),
		Accounts: credits.NewRepository(conn),
		Ledger:   ledger.NewRepository(conn),
		Logger:   logg,
	})
	require.NoError(t, err)

	fake := newFakeStripe()
	svc, err := NewService(ServiceParams{
		Repo:         NewRepository(conn),
		Stripe:       fake,
		Packages:     pkgSvc,
		Credits:      creditSvc,
		Ledger:       ledger.NewRepository(conn),
		Metrics:      metrics.NewGatewayMetrics(nil),
		Logger:       logg,
		IntentExpiry: 24 * time.Hour,
	})
	require.NoError(t, err)

	return &paymentsFixture{svc: svc, stripe: fake, conn: conn, credits: creditSvc}
}

func TestCreateIntentPersistsRecord(t *testing.T) {
	f := setupPayments(t)
	ctx := context.Background()
	tenantID := uuid.New()

	res, err := f.svc.CreateIntent(ctx, CreateIntentInput{
		TenantID: tenantID, EndUserID: 1, PackageID: "article_starter",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.StripeIntentID)
	assert.NotEmpty(t, res.ClientSecret)
	assert.EqualValues(t, 900, res.AmountCents)
	assert.EqualValues(t, 10, res.Credits)

	var record models.PaymentIntent
	require.NoError(t, f.conn.Where("stripe_intent_id = ?", res.StripeIntentID).First(&record).Error)
	assert.Equal(t, enums.PaymentIntentStatusCreated, record.Status)
	assert.Equal(t, tenantID, record.TenantID)
	assert.Equal(t, enums.CreditKindArticle, record.Kind)
}

func TestCreateIntentRejectsUnknownOrInactivePackage(t *testing.T) {
	f := setupPayments(t)
	ctx := context.Background()

	_, err := f.svc.CreateIntent(ctx, CreateIntentInput{
		TenantID: uuid.New(), EndUserID: 1, PackageID: "ghost_pack",
	})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestConfirmGrantsExactlyOnce(t *testing.T) {
	f := setupPayments(t)
	ctx := context.Background()
	tenantID := uuid.New()

	created, err := f.svc.CreateIntent(ctx, CreateIntentInput{
		TenantID: tenantID, EndUserID: 5, PackageID: "image_starter",
	})
	require.NoError(t, err)
	f.stripe.succeed(created.StripeIntentID)

	confirmed, err := f.svc.Confirm(ctx, ConfirmInput{
		TenantID: tenantID, EndUserID: 5, StripeIntentID: created.StripeIntentID,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 20, confirmed.CreditsGranted)
	assert.EqualValues(t, 20, confirmed.BalanceAfter)

	// Second confirm must flip nothing and grant nothing.
	_, err = f.svc.Confirm(ctx, ConfirmInput{
		TenantID: tenantID, EndUserID: 5, StripeIntentID: created.StripeIntentID,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeAlreadyConfirmed, pkgerrors.CodeOf(err))

	account, err := f.credits.Balances(ctx, tenantID, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 20, account.ImageCredits, "replayed confirm must not double-grant")

	var entries int64
	require.NoError(t, f.conn.Model(&models.CreditTransaction{}).
		Where("reference_id = ?", created.StripeIntentID).
		Count(&entries).Error)
	assert.EqualValues(t, 1, entries)
}

func TestConfirmRequiresProcessorSuccess(t *testing.T) {
	f := setupPayments(t)
	ctx := context.Background()
	tenantID := uuid.New()

	created, err := f.svc.CreateIntent(ctx, CreateIntentInput{
		TenantID: tenantID, EndUserID: 6, PackageID: "article_starter",
	})
	require.NoError(t, err)

	// Processor still reports requires_payment_method.
	_, err = f.svc.Confirm(ctx, ConfirmInput{
		TenantID: tenantID, EndUserID: 6, StripeIntentID: created.StripeIntentID,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	var record models.PaymentIntent
	require.NoError(t, f.conn.Where("stripe_intent_id = ?", created.StripeIntentID).First(&record).Error)
	assert.Equal(t, enums.PaymentIntentStatusCreated, record.Status, "failed verification must not flip the intent")
}

func TestConfirmHidesOtherTenantsIntents(t *testing.T) {
	f := setupPayments(t)
	ctx := context.Background()
	owner := uuid.New()

	created, err := f.svc.CreateIntent(ctx, CreateIntentInput{
		TenantID: owner, EndUserID: 7, PackageID: "article_starter",
	})
	require.NoError(t, err)
	f.stripe.succeed(created.StripeIntentID)

	_, err = f.svc.Confirm(ctx, ConfirmInput{
		TenantID: uuid.New(), EndUserID: 7, StripeIntentID: created.StripeIntentID,
	})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = f.svc.Confirm(ctx, ConfirmInput{
		TenantID: owner, EndUserID: 99, StripeIntentID: created.StripeIntentID,
	})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestConfirmRejectsExpiredIntent(t *testing.T) {
	f := setupPayments(t)
	ctx := context.Background()
	tenantID := uuid.New()

	created, err := f.svc.CreateIntent(ctx, CreateIntentInput{
		TenantID: tenantID, EndUserID: 8, PackageID: "article_starter",
	})
	require.NoError(t, err)
	f.stripe.succeed(created.StripeIntentID)

	require.NoError(t, f.conn.Model(&models.PaymentIntent{}).
		Where("stripe_intent_id = ?", created.StripeIntentID).
		Update("expires_at", time.Now().UTC().Add(-time.Hour)).Error)

	_, err = f.svc.Confirm(ctx, ConfirmInput{
		TenantID: tenantID, EndUserID: 8, StripeIntentID: created.StripeIntentID,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
}

func TestReconcileRepairsMissingGrant(t *testing.T) {
	f := setupPayments(t)
	ctx := context.Background()
	tenantID := uuid.New()

	// A confirmed intent whose grant never landed: inserted directly, as if
	// the process died between the flip and the grant.
	confirmedAt := time.Now().UTC().Add(-time.Hour)
	intent := &models.PaymentIntent{
		ID:             uuid.New(),
		TenantID:       tenantID,
		EndUserID:      11,
		StripeIntentID: "pi_orphaned_1",
		PackageID:      "rewrite_bundle",
		Kind:           enums.CreditKindRewrite,
		AmountCents:    1200,
		Currency:       enums.CurrencyUSD,
		Status:         enums.PaymentIntentStatusConfirmed,
		ConfirmedAt:    &confirmedAt,
		ExpiresAt:      time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, f.conn.Create(intent).Error)

	repaired, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	account, err := f.credits.Balances(ctx, tenantID, 11)
	require.NoError(t, err)
	assert.EqualValues(t, 100, account.RewriteCredits)

	// The sweep is idempotent: the grant it just wrote satisfies the next scan.
	repaired, err = f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)

	account, err = f.credits.Balances(ctx, tenantID, 11)
	require.NoError(t, err)
	assert.EqualValues(t, 100, account.RewriteCredits)
}

func TestReconcileContinuesPastFailedIntent(t *testing.T) {
	f := setupPayments(t)
	ctx := context.Background()
	tenantID := uuid.New()

	// Two orphaned confirmations; the older one references a package that no
	// longer resolves, so its re-grant fails.
	brokenAt := time.Now().UTC().Add(-2 * time.Hour)
	broken := &models.PaymentIntent{
		ID:             uuid.New(),
		TenantID:       tenantID,
		EndUserID:      21,
		StripeIntentID: "pi_orphaned_broken",
		PackageID:      "package_gone",
		Kind:           enums.CreditKindArticle,
		AmountCents:    900,
		Currency:       enums.CurrencyUSD,
		Status:         enums.PaymentIntentStatusConfirmed,
		ConfirmedAt:    &brokenAt,
		ExpiresAt:      time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, f.conn.Create(broken).Error)

	healthyAt := time.Now().UTC().Add(-time.Hour)
	healthy := &models.PaymentIntent{
		ID:             uuid.New(),
		TenantID:       tenantID,
		EndUserID:      22,
		StripeIntentID: "pi_orphaned_healthy",
		PackageID:      "rewrite_bundle",
		Kind:           enums.CreditKindRewrite,
		AmountCents:    1200,
		Currency:       enums.CurrencyUSD,
		Status:         enums.PaymentIntentStatusConfirmed,
		ConfirmedAt:    &healthyAt,
		ExpiresAt:      time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, f.conn.Create(healthy).Error)

	repaired, err := f.svc.Reconcile(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pi_orphaned_broken")
	assert.Equal(t, 1, repaired)

	account, err := f.credits.Balances(ctx, tenantID, 22)
	require.NoError(t, err)
	assert.EqualValues(t, 100, account.RewriteCredits)
}
