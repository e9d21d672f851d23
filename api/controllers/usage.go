package controllers

import (
	"net/http"

	"github.com/scribewell/plugin-gateway/api/middleware"
	"github.com/scribewell/plugin-gateway/api/responses"
	"github.com/scribewell/plugin-gateway/api/validators"
	"github.com/scribewell/plugin-gateway/internal/usage"
	"github.com/scribewell/plugin-gateway/pkg/enums"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
)

type usagePayload struct {
	EndUserID      int64   `json:"end_user_id" validate:"required,gt=0"`
	ContentKind    string  `json:"content_kind" validate:"required"`
	Prompt         string  `json:"prompt" validate:"omitempty"`
	ResultLength   int     `json:"result_length" validate:"omitempty,min=0"`
	CreditsCharged int64   `json:"credits_charged" validate:"omitempty,min=0"`
	LatencyMS      int64   `json:"latency_ms" validate:"omitempty,min=0"`
	Outcome        string  `json:"outcome" validate:"required,oneof=success failed error"`
	ErrorText      *string `json:"error_text" validate:"omitempty,max=1024"`
}

// UsageRecord accepts one metered generation record. The write is best-effort:
// the endpoint acknowledges immediately and never blocks the plugin on
// reporting storage.
func UsageRecord(svc usage.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := middleware.TenantFromContext(r.Context())
		if svc == nil || tenant == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		var body usagePayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind, err := enums.ParseCreditKind(body.ContentKind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid content kind"))
			return
		}

		svc.Record(r.Context(), usage.RecordInput{
			TenantID:       tenant.ID,
			EndUserID:      body.EndUserID,
			ContentKind:    kind,
			Prompt:         body.Prompt,
			ResultLength:   body.ResultLength,
			CreditsCharged: body.CreditsCharged,
			LatencyMS:      body.LatencyMS,
			Outcome:        enums.UsageOutcome(body.Outcome),
			ErrorText:      body.ErrorText,
		})

		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"status": "recorded"})
	}
}

// UsageReport aggregates the tenant's recent activity per content kind and
// outcome.
func UsageReport(svc usage.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := middleware.TenantFromContext(r.Context())
		if svc == nil || tenant == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		since, err := validators.ParseQueryTime(r, "since")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		until, err := validators.ParseQueryTime(r, "until")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.Report(r.Context(), tenant.ID, since, until)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"report": rows})
	}
}
