package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
	"github.com/scribewell/plugin-gateway/pkg/pagination"
)

// ReportRow is one aggregate bucket of a tenant's generation activity.
type ReportRow struct {
	ContentKind  enums.CreditKind   `json:"content_kind"`
	Outcome      enums.UsageOutcome `json:"outcome"`
	Calls        int64              `json:"calls"`
	Credits      int64              `json:"credits"`
	AvgLatencyMS float64            `json:"avg_latency_ms"`
}

// Repository manages persistence for usage records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.UsageRecord) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.UsageRecord, error)
	Report(ctx context.Context, tenantID uuid.UUID, since, until time.Time) ([]ReportRow, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a usage repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.UsageRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.UsageRecord, error) {
	q := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.UsageRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Report(ctx context.Context, tenantID uuid.UUID, since, until time.Time) ([]ReportRow, error) {
	var rows []ReportRow
	err := r.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Select("content_kind, outcome, COUNT(*) AS calls, SUM(credits_charged) AS credits, AVG(latency_ms) AS avg_latency_ms").
		Where("tenant_id = ? AND created_at >= ? AND created_at < ?", tenantID, since, until).
		Group("content_kind, outcome").
		Order("content_kind, outcome").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
