package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
	"github.com/scribewell/plugin-gateway/pkg/pagination"
)

// RollupRow is one aggregate bucket of a tenant's transaction history.
type RollupRow struct {
	Type        enums.TransactionType `json:"type"`
	Kind        enums.CreditKind      `json:"kind"`
	Entries     int64                 `json:"entries"`
	TotalAmount int64                 `json:"total_amount"`
}

// Repository manages persistence for credit transactions. Entries are append
// only; there is no update or delete path.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.CreditTransaction) error
	ListByUser(ctx context.Context, tenantID uuid.UUID, endUserID int64, cursor *pagination.Cursor, limit int) ([]models.CreditTransaction, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.CreditTransaction, error)
	HasReference(ctx context.Context, txType enums.TransactionType, referenceID string) (bool, error)
	Rollup(ctx context.Context, tenantID uuid.UUID) ([]RollupRow, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transaction ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.CreditTransaction) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByUser(ctx context.Context, tenantID uuid.UUID, endUserID int64, cursor *pagination.Cursor, limit int) ([]models.CreditTransaction, error) {
	q := r.db.WithContext(ctx).
		Where("tenant_id = ? AND end_user_id = ?", tenantID, endUserID)
	return r.list(ctx, q, cursor, limit)
}

func (r *repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.CreditTransaction, error) {
	q := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID)
	return r.list(ctx, q, cursor, limit)
}

func (r *repository) list(_ context.Context, q *gorm.DB, cursor *pagination.Cursor, limit int) ([]models.CreditTransaction, error) {
	q = q.Order("created_at DESC, id DESC").Limit(limit)
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.CreditTransaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// HasReference reports whether an entry of the given type already references
// the external id. The reconciliation sweep uses this to find confirmed
// payments whose grant never landed.
func (r *repository) HasReference(ctx context.Context, txType enums.TransactionType, referenceID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CreditTransaction{}).
		Where("type = ? AND reference_id = ?", txType, referenceID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) Rollup(ctx context.Context, tenantID uuid.UUID) ([]RollupRow, error) {
	var rows []RollupRow
	err := r.db.WithContext(ctx).
		Model(&models.CreditTransaction{}).
		Select("type, kind, COUNT(*) AS entries, SUM(amount) AS total_amount").
		Where("tenant_id = ?", tenantID).
		Group("type, kind").
		Order("type, kind").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
