package controllers

import (
	"net/http"

	"github.com/scribewell/plugin-gateway/api/responses"
	"github.com/scribewell/plugin-gateway/internal/packages"
	"github.com/scribewell/plugin-gateway/pkg/db/models"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
)

// PackageList returns the purchasable catalog in display order.
func PackageList(svc packages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "package service unavailable"))
			return
		}

		list, err := svc.ListActive(r.Context())
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

func packageDTO(pkg models.CreditPackage) map[string]any {
	out := map[string]any{
		"id":         pkg.ID,
		"name":       pkg.DisplayName,
		"kind":       string(pkg.Kind),
		"credits":    pkg.Credits,
		"price":      pkg.Price.StringFixed(2),
		"currency":   string(pkg.Currency),
		"sort_order": pkg.SortOrder,
		"active":     pkg.Active,
	}
	if pkg.Description != nil {
		out["description"] = *pkg.Description
	}
	return out
}
