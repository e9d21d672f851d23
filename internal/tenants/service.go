package tenants

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scribewell/plugin-gateway/pkg/db"
	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
	"github.com/scribewell/plugin-gateway/pkg/pagination"
	"github.com/scribewell/plugin-gateway/pkg/security"
)

// Service defines tenant registry operations.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*RegisterResult, error)
	Authenticate(ctx context.Context, token, instanceID string) (*models.Tenant, error)
	TouchActivity(ctx context.Context, tenantID uuid.UUID)
	Deactivate(ctx context.Context, tenantID uuid.UUID) error
	Reactivate(ctx context.Context, tenantID uuid.UUID) error
	Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error)
	List(ctx context.Context, params pagination.Params) ([]models.Tenant, string, error)
}

// RegisterInput is the payload a plugin sends on activation.
type RegisterInput struct {
	InstanceID    string  `json:"instance_id" validate:"required,min=8,max=128"`
	SiteURL       string  `json:"site_url" validate:"required,url"`
	AdminEmail    string  `json:"admin_email" validate:"required,email"`
	SiteName      *string `json:"site_name" validate:"omitempty,max=256"`
	PluginVersion *string `json:"plugin_version" validate:"omitempty,max=32"`
	CMSVersion    *string `json:"cms_version" validate:"omitempty,max=32"`
}

// RegisterResult carries the tenant plus whether this call created it.
type RegisterResult struct {
	Tenant  *models.Tenant
	Created bool
}

// ServiceParams wires the tenant service dependencies.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService validates dependencies and returns a tenant service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("tenant repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

// Register creates the tenant on first call and replays the stored credentials
// on every later call with the same instance id. The instance id is the
// idempotency key; a re-register refreshes the reported site metadata but
// never rotates the token or signing secret.
func (s *service) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	instanceID := strings.TrimSpace(input.InstanceID)
	if instanceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "instance id is required")
	}

	existing, err := s.repo.FindByInstanceID(ctx, instanceID)
	if err == nil {
		return s.reRegister(ctx, existing, input)
	}
	if err != ErrNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up tenant")
	}

	token, err := security.GenerateAPIToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating api token")
	}
	secret, err := security.GenerateSigningSecret()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating signing secret")
	}

	now := time.Now().UTC()
	tenant := &models.Tenant{
		InstanceID:    instanceID,
		APIToken:      token,
		SigningSecret: secret,
		Status:        enums.TenantStatusActive,
		SiteURL:       strings.TrimSpace(input.SiteURL),
		AdminEmail:    strings.ToLower(strings.TrimSpace(input.AdminEmail)),
		SiteName:      input.SiteName,
		PluginVersion: input.PluginVersion,
		CMSVersion:    input.CMSVersion,
		LastSyncAt:    &now,
	}

	if err := s.repo.Create(ctx, tenant); err != nil {
		if db.IsUniqueViolation(err) {
			// Lost a race with a concurrent first registration; replay it.
			raced, findErr := s.repo.FindByInstanceID(ctx, instanceID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "resolving concurrent registration")
			}
			return s.reRegister(ctx, raced, input)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating tenant")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":   tenant.ID.String(),
		"instance_id": instanceID,
	}), "tenant registered")

	return &RegisterResult{Tenant: tenant, Created: true}, nil
}

func (s *service) reRegister(ctx context.Context, tenant *models.Tenant, input RegisterInput) (*RegisterResult, error) {
	now := time.Now().UTC()
	tenant.SiteURL = strings.TrimSpace(input.SiteURL)
	tenant.AdminEmail = strings.ToLower(strings.TrimSpace(input.AdminEmail))
	tenant.SiteName = input.SiteName
	tenant.PluginVersion = input.PluginVersion
	tenant.CMSVersion = input.CMSVersion
	tenant.LastSyncAt = &now

	if err := s.repo.UpdateSyncInfo(ctx, tenant); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "refreshing tenant metadata")
	}
	return &RegisterResult{Tenant: tenant, Created: false}, nil
}

// Authenticate resolves a tenant from its bearer token and verifies the caller
// also presented the matching instance id. Both must agree before any metered
// operation runs.
func (s *service) Authenticate(ctx context.Context, token, instanceID string) (*models.Tenant, error) {
	token = strings.TrimSpace(token)
	instanceID = strings.TrimSpace(instanceID)
	if token == "" || instanceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}

	tenant, err := s.repo.FindByAPIToken(ctx, token)
	if err == ErrNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown api token")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up tenant")
	}

	if tenant.InstanceID != instanceID {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "instance id does not match token")
	}
	if tenant.Status != enums.TenantStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "tenant is deactivated")
	}
	return tenant, nil
}

// TouchActivity updates the activity counters outside the request's critical
// path. Failures are logged and dropped; activity stats never fail a request.
func (s *service) TouchActivity(ctx context.Context, tenantID uuid.UUID) {
	if tenantID == uuid.Nil {
		return
	}
	if err := s.repo.TouchActivity(ctx, tenantID, time.Now().UTC()); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"tenant_id": tenantID.String(),
			"error":     err.Error(),
		}), "tenant activity touch failed")
	}
}

func (s *service) Deactivate(ctx context.Context, tenantID uuid.UUID) error {
	return s.setStatus(ctx, tenantID, enums.TenantStatusInactive)
}

func (s *service) Reactivate(ctx context.Context, tenantID uuid.UUID) error {
	return s.setStatus(ctx, tenantID, enums.TenantStatusActive)
}

func (s *service) setStatus(ctx context.Context, tenantID uuid.UUID, status enums.TenantStatus) error {
	if tenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	err := s.repo.UpdateStatus(ctx, tenantID, status)
	if err == ErrNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating tenant status")
	}
	return nil
}

func (s *service) Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	tenant, err := s.repo.FindByID(ctx, tenantID)
	if err == ErrNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up tenant")
	}
	return tenant, nil
}

func (s *service) List(ctx context.Context, params pagination.Params) ([]models.Tenant, string, error) {
	cursor, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parsing cursor")
	}

	rows, err := s.repo.List(ctx, cursor, pagination.FetchLimit(params.Limit))
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing tenants")
	}

	page, next := pagination.Page(rows, params.Limit, func(t models.Tenant) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	return page, next, nil
}
