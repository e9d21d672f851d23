package credits

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/scribewell/plugin-gateway/internal/ledger"
	"github.com/scribewell/plugin-gateway/pkg/db"
	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
)

func setupCreditsService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:credits_svc_test_"+t.Name()+"?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{})
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
  balance_after INTEGER NOT NULL CHECK (balance_after >= 0),
  reference_id TEXT,
  description TEXT NOT NULL,
  created_at DATETIME
);`}
	for _, stmt := range ddl {
		require.NoError(t, conn.Exec(stmt).Error)
	}

	svc, err := NewService(ServiceParams{
		DB:       db.FromConn(conn),
		Accounts: NewRepository(conn),
		Ledger:   ledger.NewRepository(conn),
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
	})
	require.NoError(t, err)
	return svc, conn
}

func ledgerRows(t *testing.T, conn *gorm.DB, tenantID uuid.UUID, endUserID int64) []models.CreditTransaction {
	t.Helper()
	var rows []models.CreditTransaction
	require.NoError(t, conn.
		Where("tenant_id = ? AND end_user_id = ?", tenantID, endUserID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error)
	return rows
}

func TestGrantThenDeductWritesMatchingLedger(t *testing.T) {
	svc, conn := setupCreditsService(t)
	ctx := context.Background()
	tenantID := uuid.New()

	granted, err := svc.Grant(ctx, GrantInput{
		TenantID:    tenantID,
		EndUserID:   1,
		Kind:        enums.CreditKindArticle,
		Amount:      5,
		Type:        enums.TransactionTypeBonus,
		Description: "welcome bonus",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 5, granted.BalanceAfter)

	deducted, err := svc.Deduct(ctx, DeductInput{
		TenantID:    tenantID,
		EndUserID:   1,
		Kind:        enums.CreditKindArticle,
		Amount:      2,
		Description: "article generation",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, deducted.BalanceAfter)

	rows := ledgerRows(t, conn, tenantID, 1)
	require.Len(t, rows, 2)

	assert.Equal(t, enums.TransactionTypeBonus, rows[0].Type)
	assert.EqualValues(t, 5, rows[0].Amount)
	assert.EqualValues(t, 5, rows[0].BalanceAfter)

	assert.Equal(t, enums.TransactionTypeDeduction, rows[1].Type)
	assert.EqualValues(t, -2, rows[1].Amount)
	assert.EqualValues(t, 3, rows[1].BalanceAfter)
}

func TestDeductInsufficientLeavesNoLedgerEntry(t *testing.T) {
	svc, conn := setupCreditsService(t)
	ctx := context.Background()
	tenantID := uuid.New()

	_, err := svc.Deduct(ctx, DeductInput{
		TenantID:    tenantID,
		EndUserID:   2,
		Kind:        enums.CreditKindImage,
		Amount:      1,
		Description: "image generation",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInsufficientCredits, pkgerrors.CodeOf(err))

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, details["required"])
	assert.EqualValues(t, 0, details["available"])

	assert.Empty(t, ledgerRows(t, conn, tenantID, 2), "rejected deduction must not touch the ledger")

	// The zero-balance account row still exists after the failed charge.
	balances, err := svc.Balances(ctx, tenantID, 2)
	require.NoError(t, err)
	assert.Zero(t, balances.ImageCredits)
}

func TestLedgerReplayMatchesBalance(t *testing.T) {
	svc, conn := setupCreditsService(t)
	ctx := context.Background()
	tenantID := uuid.New()

	moves := []struct {
		grant  bool
		amount int64
	}{
		{grant: true, amount: 10},
		{grant: false, amount: 3},
		{grant: true, amount: 4},
		{grant: false, amount: 1},
		{grant: false, amount: 5},
	}
	for _, m := range moves {
		if m.grant {
			_, err := svc.Grant(ctx, GrantInput{
				TenantID: tenantID, EndUserID: 9,
				Kind: enums.CreditKindRewrite, Amount: m.amount,
				Type: enums.TransactionTypePurchase, Description: "pack",
			})
			require.NoError(t, err)
		} else {
			_, err := svc.Deduct(ctx, DeductInput{
				TenantID: tenantID, EndUserID: 9,
				Kind: enums.CreditKindRewrite, Amount: m.amount,
				Description: "rewrite",
			})
			require.NoError(t, err)
		}
	}

	var replayed int64
	for _, row := range ledgerRows(t, conn, tenantID, 9) {
		replayed += row.Amount
	}

	account, err := svc.Balances(ctx, tenantID, 9)
	require.NoError(t, err)
	assert.Equal(t, account.RewriteCredits, replayed, "summing ledger amounts must reproduce the stored balance")
	assert.EqualValues(t, 5, replayed)
}

func TestGrantRejectsDeductionType(t *testing.T) {
	svc, _ := setupCreditsService(t)

	_, err := svc.Grant(context.Background(), GrantInput{
		TenantID: uuid.New(), EndUserID: 1,
		Kind: enums.CreditKindArticle, Amount: 1,
		Type: enums.TransactionTypeDeduction, Description: "nope",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
