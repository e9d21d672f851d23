package middleware

import (
	"context"

	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
)

type contextKey string

const (
	ctxTenant       contextKey = "tenant"
	ctxOperatorID   contextKey = "operator_id"
	ctxOperatorRole contextKey = "operator_role"
)

// TenantFromContext returns the authenticated tenant, or nil on
// unauthenticated routes.
func TenantFromContext(ctx context.Context) *models.Tenant {
	if ctx == nil {
		return nil
	}
	if t, ok := ctx.Value(ctxTenant).(*models.Tenant); ok {
		return t
	}
	return nil
}

func OperatorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxOperatorID).(string); ok {
		return v
	}
	return ""
}

func OperatorRoleFromContext(ctx context.Context) enums.OperatorRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxOperatorRole).(enums.OperatorRole); ok {
		return v
	}
	return ""
}

// WithTenant injects the tenant into the context for downstream handlers.
func WithTenant(ctx context.Context, tenant *models.Tenant) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxTenant, tenant)
}

// WithOperator injects operator identity into the context.
func WithOperator(ctx context.Context, operatorID string, role enums.OperatorRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxOperatorID, operatorID)
	return context.WithValue(ctx, ctxOperatorRole, role)
}
