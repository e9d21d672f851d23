package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"

	"github.com/scribewell/plugin-gateway/internal/credits"
	"github.com/scribewell/plugin-gateway/internal/ledger"
	"github.com/scribewell/plugin-gateway/internal/packages"
	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
	"github.com/scribewell/plugin-gateway/pkg/metrics"
)

// reconcileGrace keeps the sweep away from confirmations that are still in
// flight; only intents confirmed at least this long ago are inspected.
const reconcileGrace = 5 * time.Minute

// Service drives the purchase flow: create an intent with the processor,
// confirm it exactly once, and grant the purchased credits.
type Service interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (*CreateIntentResult, error)
	Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error)
	Reconcile(ctx context.Context) (int, error)
	ListForTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.PaymentIntent, error)
}

// CreateIntentInput starts a purchase of one catalog package.
type CreateIntentInput struct {
	TenantID  uuid.UUID
	EndUserID int64
	PackageID string `json:"package_id" validate:"required"`
}

// CreateIntentResult carries what the plugin needs to finish checkout.
type CreateIntentResult struct {
	StripeIntentID string    `json:"payment_intent_id"`
	ClientSecret   string    `json:"client_secret"`
	AmountCents    int64     `json:"amount_cents"`
	Currency       string    `json:"currency"`
	Credits        int64     `json:"credits"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// ConfirmInput finalizes a purchase after the processor reports success.
type ConfirmInput struct {
	TenantID       uuid.UUID
	EndUserID      int64
	StripeIntentID string `json:"payment_intent_id" validate:"required"`
}

// ConfirmResult reports the grant that the confirmation produced.
type ConfirmResult struct {
	CreditsGranted int64 `json:"credits_granted"`
	BalanceAfter   int64 `json:"balance_after"`
	Kind           enums.CreditKind
}

// ServiceParams wires the payment service dependencies.
type ServiceParams struct {
	Repo         Repository
	Stripe       StripeIntentClient
	Packages     packages.Service
	Credits      credits.Service
	Ledger       ledger.Repository
	Metrics      *metrics.GatewayMetrics
	Logger       *logger.Logger
	IntentExpiry time.Duration
}

type service struct {
	repo         Repository
	stripe       StripeIntentClient
	packages     packages.Service
	credits      credits.Service
	ledger       ledger.Repository
	metrics      *metrics.GatewayMetrics
	logg         *logger.Logger
	intentExpiry time.Duration
	now          func() time.Time
}

// NewService validates dependencies and returns a payment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if params.Stripe == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if params.Packages == nil {
		return nil, fmt.Errorf("package service required")
	}
	if params.Credits == nil {
		return nil, fmt.Errorf("credit service required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	expiry := params.IntentExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &service{
		repo:         params.Repo,
		stripe:       params.Stripe,
		packages:     params.Packages,
		credits:      params.Credits,
		ledger:       params.Ledger,
		metrics:      params.Metrics,
		logg:         params.Logger,
		intentExpiry: expiry,
		now:          time.Now,
	}, nil
}

func (s *service) CreateIntent(ctx context.Context, input CreateIntentInput) (*CreateIntentResult, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}

	pkg, err := s.packages.Get(ctx, input.PackageID)
	if err != nil {
		return nil, err
	}
	if !pkg.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("package %q is no longer for sale", pkg.ID))
	}

	amountCents := pkg.Price.Mul(decimal.NewFromInt(100)).IntPart()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(string(pkg.Currency)),
	}
	params.AddMetadata("tenant_id", input.TenantID.String())
	params.AddMetadata("end_user_id", fmt.Sprintf("%d", input.EndUserID))
	params.AddMetadata("package_id", pkg.ID)

	remote, err := s.stripe.Create(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentUpstream, err, "creating payment intent")
	}

	expiresAt := s.now().UTC().Add(s.intentExpiry)
	record := &models.PaymentIntent{
		TenantID:       input.TenantID,
		EndUserID:      input.EndUserID,
		StripeIntentID: remote.ID,
		PackageID:      pkg.ID,
		Kind:           pkg.Kind,
		AmountCents:    amountCents,
		Currency:       pkg.Currency,
		Status:         enums.PaymentIntentStatusCreated,
		ExpiresAt:      expiresAt,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording payment intent")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":    input.TenantID.String(),
		"end_user_id":  input.EndUserID,
		"package_id":   pkg.ID,
		"intent_id":    remote.ID,
		"amount_cents": amountCents,
	}), "payment intent created")

	return &CreateIntentResult{
		StripeIntentID: remote.ID,
		ClientSecret:   remote.ClientSecret,
		AmountCents:    amountCents,
		Currency:       string(pkg.Currency),
		Credits:        pkg.Credits,
		ExpiresAt:      expiresAt,
	}, nil
}

// Confirm finalizes a purchase. The created->confirmed flip is the idempotency
// gate: a call that cannot perform the flip grants nothing, so retries,
// double-clicks, and replays add credits at most once per intent.
func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error) {
	intentID := strings.TrimSpace(input.StripeIntentID)
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}

	record, err := s.repo.FindByStripeID(ctx, intentID)
	if errors.Is(err, ErrNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown payment intent")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment intent")
	}
	// An intent is only confirmable by the tenant and user that opened it.
	if record.TenantID != input.TenantID || record.EndUserID != input.EndUserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown payment intent")
	}

	if record.Status == enums.PaymentIntentStatusCreated && s.now().UTC().After(record.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment intent has expired")
	}

	remote, err := s.stripe.Get(ctx, intentID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentUpstream, err, "verifying payment with processor")
	}
	if remote.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("payment has not succeeded (processor status %q)", remote.Status))
	}

	if err := s.repo.MarkConfirmed(ctx, intentID, s.now().UTC()); err != nil {
		if errors.Is(err, ErrAlreadyConfirmed) {
			return nil, pkgerrors.New(pkgerrors.CodeAlreadyConfirmed, "payment intent already confirmed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirming payment intent")
	}

	result, err := s.grantForIntent(ctx, record)
	if err != nil {
		// The flip committed but the grant did not; the reconciliation sweep
		// repairs this window. Surface it loudly in the meantime.
		s.metrics.IncAuditDivergence("confirm")
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"tenant_id":   record.TenantID.String(),
			"end_user_id": record.EndUserID,
			"intent_id":   intentID,
		}), "confirmed payment missing its grant", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "granting purchased credits")
	}
	return result, nil
}

func (s *service) grantForIntent(ctx context.Context, record *models.PaymentIntent) (*ConfirmResult, error) {
	amount, err := s.creditsForIntent(ctx, record)
	if err != nil {
		return nil, err
	}

	ref := record.StripeIntentID
	granted, err := s.credits.Grant(ctx, credits.GrantInput{
		TenantID:    record.TenantID,
		EndUserID:   record.EndUserID,
		Kind:        record.Kind,
		Amount:      amount,
		Type:        enums.TransactionTypePurchase,
		ReferenceID: &ref,
		Description: fmt.Sprintf("purchase of %s", record.PackageID),
	})
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{
		CreditsGranted: granted.Transaction.Amount,
		BalanceAfter:   granted.BalanceAfter,
		Kind:           record.Kind,
	}, nil
}

// creditsForIntent resolves how many credits the intent bought. Packages are
// deactivated rather than deleted, so the catalog row is still there for
// historical intents.
func (s *service) creditsForIntent(ctx context.Context, record *models.PaymentIntent) (int64, error) {
	pkg, err := s.packages.Get(ctx, record.PackageID)
	if err != nil {
		return 0, fmt.Errorf("resolving package %q for intent %s: %w", record.PackageID, record.StripeIntentID, err)
	}
	return pkg.Credits, nil
}

// Reconcile scans confirmed intents for a missing purchase ledger entry and
// re-issues the grant. This closes the crash window between the status flip
// and the credit grant.
func (s *service) Reconcile(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-reconcileGrace)
	intents, err := s.repo.ListConfirmed(ctx, cutoff, 500)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing confirmed intents")
	}

	var errs error
	repaired := 0
	for i := range intents {
		intent := &intents[i]
		ok, err := s.ledger.HasReference(ctx, enums.TransactionTypePurchase, intent.StripeIntentID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("checking ledger reference for %s: %w", intent.StripeIntentID, err))
			continue
		}
		if ok {
			continue
		}

		s.metrics.IncAuditDivergence("sweep")
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"tenant_id":   intent.TenantID.String(),
			"end_user_id": intent.EndUserID,
			"intent_id":   intent.StripeIntentID,
		}), "confirmed payment with no ledger entry; re-granting")

		if _, err := s.grantForIntent(ctx, intent); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("re-granting intent %s: %w", intent.StripeIntentID, err))
			continue
		}
		s.metrics.IncSweepRepairs()
		repaired++
	}
	return repaired, errs
}

func (s *service) ListForTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.PaymentIntent, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	intents, err := s.repo.ListByTenant(ctx, tenantID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing payment intents")
	}
	return intents, nil
}
