package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/scribewell/plugin-gateway/pkg/enums"
)

// CreditAccount holds the running balances for one end-user within a tenant.
// Balances never go negative; the deduction path enforces that with a
// conditional update, and the migration adds matching CHECK constraints.
type CreditAccount struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID       uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:idx_credit_accounts_tenant_user"`
	EndUserID      int64     `gorm:"column:end_user_id;not null;uniqueIndex:idx_credit_accounts_tenant_user"`
	ArticleCredits int64     `gorm:"column:article_credits;not null;default:0"`
	ImageCredits   int64     `gorm:"column:image_credits;not null;default:0"`
	RewriteCredits int64     `gorm:"column:rewrite_credits;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Balance returns the stored balance for the requested credit kind.
func (a CreditAccount) Balance(kind enums.CreditKind) int64 {
	switch kind {
	case enums.CreditKindArticle:
		return a.ArticleCredits
	case enums.CreditKindImage:
		return a.ImageCredits
	case enums.CreditKindRewrite:
		return a.RewriteCredits
	}
	return 0
}

// BalanceColumn maps a credit kind to its balance column name.
func BalanceColumn(kind enums.CreditKind) string {
	switch kind {
	case enums.CreditKindArticle:
		return "article_credits"
	case enums.CreditKindImage:
		return "image_credits"
	case enums.CreditKindRewrite:
		return "rewrite_credits"
	}
	return ""
}
