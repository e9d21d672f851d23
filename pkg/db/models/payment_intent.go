package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/scribewell/plugin-gateway/pkg/enums"
)

// PaymentIntent mirrors one processor-side payment intent. The external intent
// id is the idempotency key: the status flips created -> confirmed exactly
// once, and a confirm call that cannot perform that flip grants nothing.
type PaymentIntent struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID       uuid.UUID                 `gorm:"column:tenant_id;type:uuid;not null;index"`
	EndUserID      int64                     `gorm:"column:end_user_id;not null"`
	StripeIntentID string                    `gorm:"column:stripe_intent_id;type:text;not null;uniqueIndex"`
	PackageID      string                    `gorm:"column:package_id;type:text;not null"`
	Kind           enums.CreditKind          `gorm:"column:kind;type:credit_kind_enum;not null"`
	AmountCents    int64                     `gorm:"column:amount_cents;not null"`
	Currency       enums.Currency            `gorm:"column:currency;type:text;not null;default:'usd'"`
	Status         enums.PaymentIntentStatus `gorm:"column:status;type:payment_intent_status_enum;not null;default:'created'"`
	ConfirmedAt    *time.Time                `gorm:"column:confirmed_at"`
	ExpiresAt      time.Time                 `gorm:"column:expires_at;not null"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
