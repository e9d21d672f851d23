package packages

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/scribewell/plugin-gateway/pkg/db/models"
)

// ErrNotFound is returned when no package matches the catalog key.
var ErrNotFound = errors.New("credit package not found")

// Repository manages persistence for the credit package catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, id string) (*models.CreditPackage, error)
	ListActive(ctx context.Context) ([]models.CreditPackage, error)
	ListAll(ctx context.Context) ([]models.CreditPackage, error)
	Upsert(ctx context.Context, pkg *models.CreditPackage) error
	SetActive(ctx context.Context, id string, active bool) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context, id string) (*models.CreditPackage, error) {
	var pkg models.CreditPackage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&pkg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.CreditPackage, error) {
	var pkgs []models.CreditPackage
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("sort_order ASC, id ASC").
		Find(&pkgs).Error
	if err != nil {
		return nil, err
	}
	return pkgs, nil
}

func (r *repository) ListAll(ctx context.Context) ([]models.CreditPackage, error) {
	var pkgs []models.CreditPackage
	err := r.db.WithContext(ctx).
		Order("sort_order ASC, id ASC").
		Find(&pkgs).Error
	if err != nil {
		return nil, err
	}
	return pkgs, nil
}

// Upsert inserts the package or refreshes every mutable column when the
// catalog key already exists.
func (r *repository) Upsert(ctx context.Context, pkg *models.CreditPackage) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"kind", "credits", "price", "currency", "active",
				"display_name", "description", "sort_order", "updated_at",
			}),
		}).
		Create(pkg).Error
}

func (r *repository) SetActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.CreditPackage{}).
		Where("id = ?", id).
		Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
