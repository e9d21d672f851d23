package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/scribewell/plugin-gateway/api/responses"
	"github.com/scribewell/plugin-gateway/api/validators"
	"github.com/scribewell/plugin-gateway/internal/credits"
	"github.com/scribewell/plugin-gateway/internal/ledger"
	"github.com/scribewell/plugin-gateway/internal/tenants"
	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
	"github.com/scribewell/plugin-gateway/pkg/pagination"
)

func tenantIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "tenantID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id must be a UUID")
	}
	return id, nil
}

// AdminTenantList pages through registered plugin installations.
func AdminTenantList(svc tenants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tenant service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, next, err := svc.List(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: validators.QueryCursor(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]map[string]any, 0, len(rows))
		for i := range rows {
			out = append(out, tenantDTO(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"tenants":     out,
			"next_cursor": next,
		})
	}
}

// AdminTenantGet returns one tenant by id.
func AdminTenantGet(svc tenants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := tenantIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tenant, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tenantDTO(tenant))
	}
}

// AdminTenantDeactivate suspends a tenant. Its token stops authenticating but
// all data is preserved.
func AdminTenantDeactivate(svc tenants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := tenantIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Deactivate(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "suspended"})
	}
}

// AdminTenantReactivate restores a suspended tenant.
func AdminTenantReactivate(svc tenants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := tenantIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Reactivate(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "active"})
	}
}

// AdminTenantBalances lists every credit account under one tenant.
func AdminTenantBalances(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := tenantIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accounts, err := svc.AccountsForTenant(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]map[string]any, 0, len(accounts))
		for i := range accounts {
			out = append(out, balancesDTO(&accounts[i]))
		}
		responses.WriteSuccess(w, map[string]any{"accounts": out})
	}
}

// AdminTenantLedger pages through a tenant's full transaction history and
// includes per type/kind rollups for the dashboard.
func AdminTenantLedger(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := tenantIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, next, err := svc.HistoryForTenant(r.Context(), id, pagination.Params{
			Limit:  limit,
			Cursor: validators.QueryCursor(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rollup, err := svc.Rollup(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			entries = append(entries, transactionDTO(row))
		}
		responses.WriteSuccess(w, map[string]any{
			"entries":     entries,
			"rollup":      rollup,
			"next_cursor": next,
		})
	}
}

// AdminGrantCredits applies a manual adjustment to one end-user's balance.
func AdminGrantCredits(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	type grantPayload struct {
		EndUserID   int64  `json:"end_user_id" validate:"required,gt=0"`
		Kind        string `json:"kind" validate:"required"`
		Amount      int64  `json:"amount" validate:"required,gt=0"`
		Description string `json:"description" validate:"required,max=512"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := tenantIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body grantPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind, err := enums.ParseCreditKind(body.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid credit kind"))
			return
		}

		result, err := svc.Grant(r.Context(), credits.GrantInput{
			TenantID:    id,
			EndUserID:   body.EndUserID,
			Kind:        kind,
			Amount:      body.Amount,
			Type:        enums.TransactionTypeBonus,
			Description: body.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"kind":           string(kind),
			"granted":        body.Amount,
			"balance_after":  result.BalanceAfter,
			"transaction_id": result.Transaction.ID.String(),
		})
	}
}

func tenantDTO(t *models.Tenant) map[string]any {
	out := map[string]any{
		"id":             t.ID.String(),
		"instance_id":    t.InstanceID,
		"status":         string(t.Status),
		"site_url":       t.SiteURL,
		"admin_email":    t.AdminEmail,
		"request_count":  t.RequestCount,
		"last_active_at": t.LastActiveAt,
		"created_at":     t.CreatedAt,
	}
	if t.SiteName != nil {
		out["site_name"] = *t.SiteName
	}
	if t.PluginVersion != nil {
		out["plugin_version"] = *t.PluginVersion
	}
	return out
}
