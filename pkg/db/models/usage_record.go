package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/scribewell/plugin-gateway/pkg/enums"
)

// UsageRecord is a write-once record of one metered generation call. It feeds
// reporting only and is never consulted for balance correctness.
type UsageRecord struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID       uuid.UUID          `gorm:"column:tenant_id;type:uuid;not null;index:idx_usage_records_tenant_created"`
	EndUserID      int64              `gorm:"column:end_user_id;not null"`
	ContentKind    enums.CreditKind   `gorm:"column:content_kind;type:credit_kind_enum;not null"`
	Prompt         string             `gorm:"column:prompt;not null"`
	ResultLength   int                `gorm:"column:result_length;not null;default:0"`
	CreditsCharged int64              `gorm:"column:credits_charged;not null;default:0"`
	LatencyMS      int64              `gorm:"column:latency_ms;not null;default:0"`
	Outcome        enums.UsageOutcome `gorm:"column:outcome;type:usage_outcome_enum;not null"`
	ErrorText      *string            `gorm:"column:error_text"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime;index:idx_usage_records_tenant_created"`
}
