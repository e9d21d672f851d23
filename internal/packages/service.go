package packages

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
)

// Service defines catalog operations for purchasable credit packages.
type Service interface {
	ListActive(ctx context.Context) ([]models.CreditPackage, error)
	ListAll(ctx context.Context) ([]models.CreditPackage, error)
	Get(ctx context.Context, id string) (*models.CreditPackage, error)
	Save(ctx context.Context, input SaveInput) (*models.CreditPackage, error)
	Deactivate(ctx context.Context, id string) error
	SeedDefaults(ctx context.Context) error
}

// SaveInput creates or updates one catalog entry.
type SaveInput struct {
	ID          string  `json:"id" validate:"required,min=3,max=64"`
	Kind        string  `json:"kind" validate:"required"`
	Credits     int64   `json:"credits" validate:"required,gt=0"`
	Price       string  `json:"price" validate:"required"`
	Currency    string  `json:"currency"`
	DisplayName string  `json:"display_name" validate:"required,max=128"`
	Description *string `json:"description" validate:"omitempty,max=512"`
	SortOrder   int     `json:"sort_order"`
	Active      *bool   `json:"active"`
}

// ServiceParams wires the catalog service dependencies.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService validates dependencies and returns a catalog service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("package repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

func (s *service) ListActive(ctx context.Context) ([]models.CreditPackage, error) {
	pkgs, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing packages")
	}
	return pkgs, nil
}

func (s *service) ListAll(ctx context.Context) ([]models.CreditPackage, error) {
	pkgs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing packages")
	}
	return pkgs, nil
}

func (s *service) Get(ctx context.Context, id string) (*models.CreditPackage, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "package id is required")
	}
	pkg, err := s.repo.Find(ctx, id)
	if err == ErrNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown package %q", id))
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading package")
	}
	return pkg, nil
}

func (s *service) Save(ctx context.Context, input SaveInput) (*models.CreditPackage, error) {
	kind, err := enums.ParseCreditKind(input.Kind)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid credit kind %q", input.Kind))
	}
	if input.Credits <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credits must be positive")
	}

	price, err := decimal.NewFromString(strings.TrimSpace(input.Price))
	if err != nil || price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid price %q", input.Price))
	}

	currency := enums.CurrencyUSD
	if input.Currency != "" {
		parsed, err := enums.ParseCurrency(input.Currency)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", input.Currency))
		}
		currency = parsed
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}

	pkg := &models.CreditPackage{
		ID:          strings.TrimSpace(input.ID),
		Kind:        kind,
		Credits:     input.Credits,
		Price:       price,
		Currency:    currency,
		Active:      active,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Description: input.Description,
		SortOrder:   input.SortOrder,
	}

	if err := s.repo.Upsert(ctx, pkg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving package")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"package_id": pkg.ID,
		"kind":       string(pkg.Kind),
		"credits":    pkg.Credits,
	}), "credit package saved")

	return pkg, nil
}

// Deactivate hides the package from the storefront. Rows are never deleted;
// historical payment intents keep referencing them.
func (s *service) Deactivate(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "package id is required")
	}
	err := s.repo.SetActive(ctx, id, false)
	if err == ErrNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown package %q", id))
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivating package")
	}
	return nil
}

// SeedDefaults inserts the stock catalog on first boot. Existing entries keep
// whatever an operator has edited them to.
func (s *service) SeedDefaults(ctx context.Context) error {
	for _, def := range defaultCatalog() {
		if _, err := s.repo.Find(ctx, def.ID); err == nil {
			continue
		} else if err != ErrNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking catalog entry")
		}
		pkg := def
		if err := s.repo.Upsert(ctx, &pkg); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seeding catalog entry")
		}
	}
	return nil
}

func defaultCatalog() []models.CreditPackage {
	return []models.CreditPackage{
		{
			ID: "article_starter", Kind: enums.CreditKindArticle, Credits: 10,
			Price: decimal.NewFromFloat(9.00), Currency: enums.CurrencyUSD,
			Active: true, DisplayName: "Article Starter", SortOrder: 10,
		},
		{
			ID: "article_pro", Kind: enums.CreditKindArticle, Credits: 50,
			Price: decimal.NewFromFloat(39.00), Currency: enums.CurrencyUSD,
			Active: true, DisplayName: "Article Pro", SortOrder: 20,
		},
		{
			ID: "image_starter", Kind: enums.CreditKindImage, Credits: 20,
			Price: decimal.NewFromFloat(7.00), Currency: enums.CurrencyUSD,
			Active: true, DisplayName: "Image Starter", SortOrder: 30,
		},
		{
			ID: "image_pro", Kind: enums.CreditKindImage, Credits: 100,
			Price: decimal.NewFromFloat(29.00), Currency: enums.CurrencyUSD,
			Active: true, DisplayName: "Image Pro", SortOrder: 40,
		},
		{
			ID: "rewrite_bundle", Kind: enums.CreditKindRewrite, Credits: 100,
			Price: decimal.NewFromFloat(12.00), Currency: enums.CurrencyUSD,
			Active: true, DisplayName: "Rewrite Bundle", SortOrder: 50,
		},
	}
}
