package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
)

var (
	// ErrNotFound is returned when no intent matches the lookup.
	ErrNotFound = errors.New("payment intent not found")
	// ErrAlreadyConfirmed is returned when the created->confirmed flip found
	// the intent already confirmed.
	ErrAlreadyConfirmed = errors.New("payment intent already confirmed")
)

// Repository manages persistence for payment intents.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, intent *models.PaymentIntent) error
	FindByStripeID(ctx context.Context, stripeIntentID string) (*models.PaymentIntent, error)
	MarkConfirmed(ctx context.Context, stripeIntentID string, at time.Time) error
	ListConfirmed(ctx context.Context, confirmedBefore time.Time, limit int) ([]models.PaymentIntent, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.PaymentIntent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment intent repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	if intent.ID == uuid.Nil {
		intent.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *repository) FindByStripeID(ctx context.Context, stripeIntentID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("stripe_intent_id = ?", stripeIntentID).
		First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// MarkConfirmed flips the intent from created to confirmed in one conditional
// update. The WHERE clause on status makes the flip a compare-and-set: of any
// number of concurrent confirm calls, exactly one sees RowsAffected == 1.
func (r *repository) MarkConfirmed(ctx context.Context, stripeIntentID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("stripe_intent_id = ? AND status = ?", stripeIntentID, enums.PaymentIntentStatusCreated).
		Updates(map[string]any{
			"status":       enums.PaymentIntentStatusConfirmed,
			"confirmed_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// Nothing flipped: either the intent is unknown or someone beat us to it.
	if _, err := r.FindByStripeID(ctx, stripeIntentID); err != nil {
		return err
	}
	return ErrAlreadyConfirmed
}

func (r *repository) ListConfirmed(ctx context.Context, confirmedBefore time.Time, limit int) ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("status = ? AND confirmed_at < ?", enums.PaymentIntentStatusConfirmed, confirmedBefore).
		Order("confirmed_at ASC").
		Limit(limit).
		Find(&intents).Error
	if err != nil {
		return nil, err
	}
	return intents, nil
}

func (r *repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&intents).Error
	if err != nil {
		return nil, err
	}
	return intents, nil
}
