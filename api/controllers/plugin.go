package controllers

import (
	"net/http"

	"github.com/scribewell/plugin-gateway/api/middleware"
	"github.com/scribewell/plugin-gateway/api/responses"
	"github.com/scribewell/plugin-gateway/api/validators"
	"github.com/scribewell/plugin-gateway/internal/tenants"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
)

// PluginRegister activates a plugin installation. The call is idempotent on
// the instance id: a repeat registration returns the original credentials.
func PluginRegister(svc tenants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tenant service unavailable"))
			return
		}

		var body tenants.RegisterInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Register(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := map[string]any{
			"tenant_id":      result.Tenant.ID.String(),
			"api_token":      result.Tenant.APIToken,
			"signing_secret": result.Tenant.SigningSecret,
			"status":         string(result.Tenant.Status),
		}

		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, payload)
	}
}

// PluginPing confirms the tenant's credentials are still valid.
func PluginPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"status": "ok"}
		if tenant := middleware.TenantFromContext(r.Context()); tenant != nil {
			payload["tenant_id"] = tenant.ID.String()
		}
		responses.WriteSuccess(w, payload)
	}
}
