package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scribewell/plugin-gateway/api/responses"
	"github.com/scribewell/plugin-gateway/api/validators"
	"github.com/scribewell/plugin-gateway/internal/packages"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
)

// AdminPackageList returns the whole catalog, inactive entries included.
func AdminPackageList(svc packages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "package service unavailable"))
			return
		}

		list, err := svc.ListAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]map[string]any, 0, len(list))
		for _, pkg := range list {
			out = append(out, packageDTO(pkg))
		}
		responses.WriteSuccess(w, map[string]any{"packages": out})
	}
}

// AdminPackageSave creates or updates one catalog entry.
func AdminPackageSave(svc packages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "package service unavailable"))
			return
		}

		var body packages.SaveInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		saved, err := svc.Save(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, packageDTO(*saved))
	}
}

// AdminPackageDeactivate hides a package from the purchasable catalog.
// Packages are never deleted because confirmed purchases reference them.
func AdminPackageDeactivate(svc packages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "packageID")
		if id == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "package id required"))
			return
		}

		if err := svc.Deactivate(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}
