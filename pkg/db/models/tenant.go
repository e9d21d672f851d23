package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/scribewell/plugin-gateway/pkg/enums"
)

// Tenant is one registered plugin installation. The instance id is supplied by
// the client on first registration and never changes; the API token and webhook
// signing secret are generated server-side and are immutable for the tenant's
// lifetime.
type Tenant struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InstanceID    string             `gorm:"column:instance_id;type:text;not null;uniqueIndex"`
	APIToken      string             `gorm:"column:api_token;type:text;not null;uniqueIndex"`
	SigningSecret string             `gorm:"column:signing_secret;type:text;not null"`
	Status        enums.TenantStatus `gorm:"column:status;type:tenant_status_enum;not null;default:'active'"`
	SiteURL       string             `gorm:"column:site_url;not null"`
	AdminEmail    string             `gorm:"column:admin_email;not null"`
	SiteName      *string            `gorm:"column:site_name"`
	PluginVersion *string            `gorm:"column:plugin_version"`
	CMSVersion    *string            `gorm:"column:cms_version"`
	RequestCount  int64              `gorm:"column:request_count;not null;default:0"`
	LastActiveAt  *time.Time         `gorm:"column:last_active_at"`
	LastSyncAt    *time.Time         `gorm:"column:last_sync_at"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
