package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scribewell/plugin-gateway/pkg/db"
	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
)

// ErrInsufficient is returned when a deduction would take a balance negative.
var ErrInsufficient = errors.New("insufficient credits")

// Repository manages persistence for per-user credit accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetOrCreate(ctx context.Context, tenantID uuid.UUID, endUserID int64) (*models.CreditAccount, error)
	Find(ctx context.Context, tenantID uuid.UUID, endUserID int64) (*models.CreditAccount, error)
	Deduct(ctx context.Context, tenantID uuid.UUID, endUserID int64, kind enums.CreditKind, amount int64) (int64, error)
	Grant(ctx context.Context, tenantID uuid.UUID, endUserID int64, kind enums.CreditKind, amount int64) (int64, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.CreditAccount, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a credit account repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetOrCreate(ctx context.Context, tenantID uuid.UUID, endUserID int64) (*models.CreditAccount, error) {
	account, err := r.Find(ctx, tenantID, endUserID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := &models.CreditAccount{
		ID:        uuid.New(),
		TenantID:  tenantID,
		EndUserID: endUserID,
	}
	if createErr := r.db.WithContext(ctx).Create(fresh).Error; createErr != nil {
		if db.IsUniqueViolation(createErr) {
			// Concurrent first touch created it; read that row.
			return r.Find(ctx, tenantID, endUserID)
		}
		return nil, createErr
	}
	return fresh, nil
}

func (r *repository) Find(ctx context.Context, tenantID uuid.UUID, endUserID int64) (*models.CreditAccount, error) {
	var account models.CreditAccount
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND end_user_id = ?", tenantID, endUserID).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Deduct subtracts amount from the balance for kind in one conditional update.
// The WHERE clause refuses to touch a row whose balance is below amount, so
// two concurrent deductions can never drive the balance negative. Returns the
// balance after the deduction.
func (r *repository) Deduct(ctx context.Context, tenantID uuid.UUID, endUserID int64, kind enums.CreditKind, amount int64) (int64, error) {
	column := models.BalanceColumn(kind)
	if column == "" {
		return 0, fmt.Errorf("unknown credit kind %q", kind)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("deduct amount must be positive, got %d", amount)
	}

	res := r.db.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Where("tenant_id = ? AND end_user_id = ? AND "+column+" >= ?", tenantID, endUserID, amount).
		Update(column, gorm.Expr(column+" - ?", amount))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrInsufficient
	}

	return r.balance(ctx, tenantID, endUserID, column)
}

// Grant adds amount to the balance for kind. The account must already exist;
// callers go through GetOrCreate first. Returns the balance after the grant.
func (r *repository) Grant(ctx context.Context, tenantID uuid.UUID, endUserID int64, kind enums.CreditKind, amount int64) (int64, error) {
	column := models.BalanceColumn(kind)
	if column == "" {
		return 0, fmt.Errorf("unknown credit kind %q", kind)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}

	res := r.db.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Where("tenant_id = ? AND end_user_id = ?", tenantID, endUserID).
		Update(column, gorm.Expr(column+" + ?", amount))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	return r.balance(ctx, tenantID, endUserID, column)
}

func (r *repository) balance(ctx context.Context, tenantID uuid.UUID, endUserID int64, column string) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Select(column).
		Where("tenant_id = ? AND end_user_id = ?", tenantID, endUserID).
		Scan(&value).Error
	return value, err
}

func (r *repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.CreditAccount, error) {
	var accounts []models.CreditAccount
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("end_user_id ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}
