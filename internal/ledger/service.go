package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/pagination"
)

// Service exposes read access to the transaction ledger. Writes happen inside
// the credits service transaction, through the repository directly.
type Service interface {
	HistoryForUser(ctx context.Context, tenantID uuid.UUID, endUserID int64, params pagination.Params) ([]models.CreditTransaction, string, error)
	HistoryForTenant(ctx context.Context, tenantID uuid.UUID, params pagination.Params) ([]models.CreditTransaction, string, error)
	Rollup(ctx context.Context, tenantID uuid.UUID) ([]RollupRow, error)
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) HistoryForUser(ctx context.Context, tenantID uuid.UUID, endUserID int64, params pagination.Params) ([]models.CreditTransaction, string, error) {
	if tenantID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	cursor, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parsing cursor")
	}

	rows, err := s.repo.ListByUser(ctx, tenantID, endUserID, cursor, pagination.FetchLimit(params.Limit))
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing transactions")
	}
	page, next := paginate(rows, params.Limit)
	return page, next, nil
}

func (s *service) HistoryForTenant(ctx context.Context, tenantID uuid.UUID, params pagination.Params) ([]models.CreditTransaction, string, error) {
	if tenantID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	cursor, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parsing cursor")
	}

	rows, err := s.repo.ListByTenant(ctx, tenantID, cursor, pagination.FetchLimit(params.Limit))
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing transactions")
	}
	page, next := paginate(rows, params.Limit)
	return page, next, nil
}

func (s *service) Rollup(ctx context.Context, tenantID uuid.UUID) ([]RollupRow, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	rows, err := s.repo.Rollup(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregating transactions")
	}
	return rows, nil
}

func paginate(rows []models.CreditTransaction, limit int) ([]models.CreditTransaction, string) {
	return pagination.Page(rows, limit, func(tx models.CreditTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: tx.CreatedAt, ID: tx.ID}
	})
}

// Entry builds a ledger row for the given movement. Amount carries the sign
// convention: deductions are negative, everything else positive.
func Entry(tenantID uuid.UUID, endUserID int64, txType enums.TransactionType, kind enums.CreditKind, amount, balanceAfter int64, referenceID *string, description string) *models.CreditTransaction {
	return &models.CreditTransaction{
		TenantID:     tenantID,
		EndUserID:    endUserID,
		Type:         txType,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		ReferenceID:  referenceID,
		Description:  description,
	}
}
