package middleware

import (
	"context"
	"net/http"

	"github.com/scribewell/plugin-gateway/api/responses"
	"github.com/scribewell/plugin-gateway/api/validators"
	"github.com/scribewell/plugin-gateway/internal/tenants"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
)

// TenantAuth validates the bearer API token together with the X-Instance-Id
// header and seeds the request context with the tenant. Activity tracking is
// fire-and-forget so it never adds latency to the request path.
func TenantAuth(svc tenants.Service, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := validators.BearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			instanceID := validators.InstanceID(r)
			if instanceID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing instance id"))
				return
			}

			tenant, err := svc.Authenticate(r.Context(), token, instanceID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			go svc.TouchActivity(context.WithoutCancel(r.Context()), tenant.ID)

			ctx := WithTenant(r.Context(), tenant)
			if logg != nil {
				ctx = logg.WithTenantID(ctx, tenant.ID.String())
				ctx = logg.WithInstanceID(ctx, tenant.InstanceID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
