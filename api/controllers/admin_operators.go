package controllers

import (
	"net/http"

	"github.com/scribewell/plugin-gateway/api/responses"
	"github.com/scribewell/plugin-gateway/api/validators"
	"github.com/scribewell/plugin-gateway/internal/operators"
	"github.com/scribewell/plugin-gateway/internal/payments"
	"github.com/scribewell/plugin-gateway/pkg/db/models"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
)

// AdminOperatorCreate provisions a new dashboard operator.
func AdminOperatorCreate(svc operators.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "operator service unavailable"))
			return
		}

		var body operators.CreateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, operatorDTO(created))
	}
}

// AdminOperatorList returns all operator accounts.
func AdminOperatorList(svc operators.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "operator service unavailable"))
			return
		}

		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]map[string]any, 0, len(list))
		for i := range list {
			out = append(out, operatorDTO(&list[i]))
		}
		responses.WriteSuccess(w, map[string]any{"operators": out})
	}
}

// AdminReconcileRun triggers the payment reconciliation sweep on demand.
func AdminReconcileRun(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		repaired, err := svc.Reconcile(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"repaired": repaired})
	}
}

func operatorDTO(op *models.Operator) map[string]any {
	if op == nil {
		return nil
	}
	return map[string]any{
		"id":            op.ID.String(),
		"email":         op.Email,
		"role":          string(op.Role),
		"is_active":     op.IsActive,
		"last_login_at": op.LastLoginAt,
		"created_at":    op.CreatedAt,
	}
}
