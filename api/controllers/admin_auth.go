package controllers

import (
	"net/http"

	"github.com/scribewell/plugin-gateway/api/responses"
	"github.com/scribewell/plugin-gateway/api/validators"
	"github.com/scribewell/plugin-gateway/internal/operators"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
)

// AdminLogin exchanges operator credentials for an access token.
func AdminLogin(svc operators.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "operator service unavailable"))
			return
		}

		var body operators.LoginInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"token":      result.Token,
			"expires_at": result.ExpiresAt,
			"operator":   operatorDTO(result.Operator),
		})
	}
}
