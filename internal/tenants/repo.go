package tenants

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
	"github.com/scribewell/plugin-gateway/pkg/pagination"
)

// ErrNotFound is returned when no tenant matches the lookup.
var ErrNotFound = errors.New("tenant not found")

// Repository manages persistence for registered plugin installations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, tenant *models.Tenant) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	FindByInstanceID(ctx context.Context, instanceID string) (*models.Tenant, error)
	FindByAPIToken(ctx context.Context, token string) (*models.Tenant, error)
	TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TenantStatus) error
	UpdateSyncInfo(ctx context.Context, tenant *models.Tenant) error
	List(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Tenant, error)
	Count(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a tenant repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(tenant).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindByInstanceID(ctx context.Context, instanceID string) (*models.Tenant, error) {
	return r.findOne(ctx, "instance_id = ?", instanceID)
}

func (r *repository) FindByAPIToken(ctx context.Context, token string) (*models.Tenant, error) {
	return r.findOne(ctx, "api_token = ?", token)
}

func (r *repository) findOne(ctx context.Context, query string, arg any) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.WithContext(ctx).Where(query, arg).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// TouchActivity bumps the request counter and activity timestamp in one
// statement so concurrent requests never lose counts.
func (r *repository) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"request_count":  gorm.Expr("request_count + 1"),
			"last_active_at": at,
		}).Error
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TenantStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSyncInfo refreshes the metadata a plugin reports on re-registration.
func (r *repository) UpdateSyncInfo(ctx context.Context, tenant *models.Tenant) error {
	return r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", tenant.ID).
		Updates(map[string]any{
			"site_url":       tenant.SiteURL,
			"admin_email":    tenant.AdminEmail,
			"site_name":      tenant.SiteName,
			"plugin_version": tenant.PluginVersion,
			"cms_version":    tenant.CMSVersion,
			"last_sync_at":   tenant.LastSyncAt,
		}).Error
}

func (r *repository) List(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Tenant, error) {
	q := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Tenant
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Tenant{}).Count(&count).Error
	return count, err
}
