package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scribewell/plugin-gateway/internal/ledger"
	"github.com/scribewell/plugin-gateway/pkg/db"
	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
)

// Service defines balance operations for per-user credit accounts. Every
// balance mutation and its ledger entry commit in the same transaction.
type Service interface {
	Deduct(ctx context.Context, input DeductInput) (*MovementResult, error)
	Grant(ctx context.Context, input GrantInput) (*MovementResult, error)
	Balances(ctx context.Context, tenantID uuid.UUID, endUserID int64) (*models.CreditAccount, error)
	AccountsForTenant(ctx context.Context, tenantID uuid.UUID) ([]models.CreditAccount, error)
}

// DeductInput describes one charge against a user's balance.
type DeductInput struct {
	TenantID    uuid.UUID
	EndUserID   int64
	Kind        enums.CreditKind
	Amount      int64
	Description string
	ReferenceID *string
}

// GrantInput describes one credit top-up and the reason it happened.
type GrantInput struct {
	TenantID    uuid.UUID
	EndUserID   int64
	Kind        enums.CreditKind
	Amount      int64
	Type        enums.TransactionType
	Description string
	ReferenceID *string
}

// MovementResult reports the committed movement and the resulting balance.
type MovementResult struct {
	BalanceAfter int64
	Transaction  *models.CreditTransaction
}

// ServiceParams wires the credit service dependencies.
type ServiceParams struct {
	DB       *db.Client
	Accounts Repository
	Ledger   ledger.Repository
	Logger   *logger.Logger
}

type service struct {
	db       *db.Client
	accounts Repository
	ledger   ledger.Repository
	logg     *logger.Logger
}

// NewService validates dependencies and returns a credit service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("credit account repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:       params.DB,
		accounts: params.Accounts,
		ledger:   params.Ledger,
		logg:     params.Logger,
	}, nil
}

// Deduct charges the user's balance for kind. The conditional update inside
// the transaction rejects the charge when the balance is short, so the ledger
// entry exists if and only if the balance actually moved.
func (s *service) Deduct(ctx context.Context, input DeductInput) (*MovementResult, error) {
	if err := validateMovement(input.TenantID, input.Kind, input.Amount); err != nil {
		return nil, err
	}

	var result MovementResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		accounts := s.accounts.WithTx(tx)

		account, err := accounts.GetOrCreate(ctx, input.TenantID, input.EndUserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading credit account")
		}

		balance, err := accounts.Deduct(ctx, input.TenantID, input.EndUserID, input.Kind, input.Amount)
		if errors.Is(err, ErrInsufficient) {
			return pkgerrors.New(pkgerrors.CodeInsufficientCredits, "insufficient credits").
				WithDetails(map[string]any{
					"kind":      input.Kind,
					"required":  input.Amount,
					"available": account.Balance(input.Kind),
				})
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deducting credits")
		}

		entry := ledger.Entry(input.TenantID, input.EndUserID, enums.TransactionTypeDeduction,
			input.Kind, -input.Amount, balance, input.ReferenceID, input.Description)
		if err := s.ledger.WithTx(tx).Create(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording deduction")
		}

		result = MovementResult{BalanceAfter: balance, Transaction: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Grant adds credits to the user's balance. Purchases pass the payment intent
// id as the reference so the reconciliation sweep can tie the grant back to
// its payment.
func (s *service) Grant(ctx context.Context, input GrantInput) (*MovementResult, error) {
	if err := validateMovement(input.TenantID, input.Kind, input.Amount); err != nil {
		return nil, err
	}
	if !input.Type.IsValid() || input.Type == enums.TransactionTypeDeduction {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid grant type %q", input.Type))
	}

	var result MovementResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		accounts := s.accounts.WithTx(tx)

		if _, err := accounts.GetOrCreate(ctx, input.TenantID, input.EndUserID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading credit account")
		}

		balance, err := accounts.Grant(ctx, input.TenantID, input.EndUserID, input.Kind, input.Amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "granting credits")
		}

		entry := ledger.Entry(input.TenantID, input.EndUserID, input.Type,
			input.Kind, input.Amount, balance, input.ReferenceID, input.Description)
		if err := s.ledger.WithTx(tx).Create(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording grant")
		}

		result = MovementResult{BalanceAfter: balance, Transaction: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":   input.TenantID.String(),
		"end_user_id": input.EndUserID,
		"kind":        string(input.Kind),
		"type":        string(input.Type),
		"amount":      input.Amount,
	}), "credits granted")

	return &result, nil
}

// Balances returns the user's account, creating a zero-balance row on first
// touch so new users always see explicit zeros.
func (s *service) Balances(ctx context.Context, tenantID uuid.UUID, endUserID int64) (*models.CreditAccount, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	account, err := s.accounts.GetOrCreate(ctx, tenantID, endUserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading credit account")
	}
	return account, nil
}

func (s *service) AccountsForTenant(ctx context.Context, tenantID uuid.UUID) ([]models.CreditAccount, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	accounts, err := s.accounts.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing credit accounts")
	}
	return accounts, nil
}

func validateMovement(tenantID uuid.UUID, kind enums.CreditKind, amount int64) error {
	if tenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if !kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid credit kind %q", kind))
	}
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return nil
}
