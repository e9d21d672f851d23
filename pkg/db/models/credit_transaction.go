package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/scribewell/plugin-gateway/pkg/enums"
)

// CreditTransaction is one immutable ledger entry. Amount is signed (negative
// for deductions) and BalanceAfter snapshots the account balance for that
// credit kind immediately after the entry was applied.
type CreditTransaction struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID     uuid.UUID             `gorm:"column:tenant_id;type:uuid;not null;index:idx_credit_transactions_tenant_user"`
	EndUserID    int64                 `gorm:"column:end_user_id;not null;index:idx_credit_transactions_tenant_user"`
	Type         enums.TransactionType `gorm:"column:type;type:transaction_type_enum;not null"`
	Kind         enums.CreditKind      `gorm:"column:kind;type:credit_kind_enum;not null"`
	Amount       int64                 `gorm:"column:amount;not null"`
	BalanceAfter int64                 `gorm:"column:balance_after;not null"`
	ReferenceID  *string               `gorm:"column:reference_id"`
	Description  string                `gorm:"column:description;not null"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
}
