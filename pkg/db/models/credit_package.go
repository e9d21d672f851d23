package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/scribewell/plugin-gateway/pkg/enums"
)

// CreditPackage is a purchasable credit bundle in the catalog. The id is a
// stable catalog key (e.g. "article_starter"); packages referenced by a
// purchase are deactivated rather than deleted.
type CreditPackage struct {
	ID          string           `gorm:"column:id;type:text;primaryKey"`
	Kind        enums.CreditKind `gorm:"column:kind;type:credit_kind_enum;not null"`
	Credits     int64            `gorm:"column:credits;not null"`
	Price       decimal.Decimal  `gorm:"column:price;type:numeric(10,2);not null"`
	Currency    enums.Currency   `gorm:"column:currency;type:text;not null;default:'usd'"`
	Active      bool             `gorm:"column:active;not null;default:true"`
	DisplayName string           `gorm:"column:display_name;not null"`
	Description *string          `gorm:"column:description"`
	SortOrder   int              `gorm:"column:sort_order;not null;default:0"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
