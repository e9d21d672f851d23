package controllers

import (
	"net/http"

	"github.com/scribewell/plugin-gateway/api/middleware"
	"github.com/scribewell/plugin-gateway/api/responses"
	"github.com/scribewell/plugin-gateway/api/validators"
	"github.com/scribewell/plugin-gateway/internal/payments"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
)

type createIntentPayload struct {
	EndUserID int64  `json:"end_user_id" validate:"required,gt=0"`
	PackageID string `json:"package_id" validate:"required,min=3,max=64"`
}

type confirmPayload struct {
	EndUserID       int64  `json:"end_user_id" validate:"required,gt=0"`
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

// PaymentCreateIntent starts a purchase of one catalog package and returns
// the client secret the plugin needs to finish checkout.
func PaymentCreateIntent(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := middleware.TenantFromContext(r.Context())
		if svc == nil || tenant == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var body createIntentPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateIntent(r.Context(), payments.CreateIntentInput{
			TenantID:  tenant.ID,
			EndUserID: body.EndUserID,
			PackageID: body.PackageID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// PaymentConfirm finalizes a purchase after the processor reports success.
// The grant happens exactly once; a replayed confirmation is a conflict.
func PaymentConfirm(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := middleware.TenantFromContext(r.Context())
		if svc == nil || tenant == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var body confirmPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Confirm(r.Context(), payments.ConfirmInput{
			TenantID:       tenant.ID,
			EndUserID:      body.EndUserID,
			StripeIntentID: body.PaymentIntentID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"credits_granted": result.CreditsGranted,
			"balance_after":   result.BalanceAfter,
			"kind":            string(result.Kind),
		})
	}
}
