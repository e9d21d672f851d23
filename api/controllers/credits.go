package controllers

import (
	"net/http"

	"github.com/scribewell/plugin-gateway/api/middleware"
	"github.com/scribewell/plugin-gateway/api/responses"
	"github.com/scribewell/plugin-gateway/api/validators"
	"github.com/scribewell/plugin-gateway/internal/credits"
	"github.com/scribewell/plugin-gateway/internal/ledger"
	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
	"github.com/scribewell/plugin-gateway/pkg/pagination"
)

type deductPayload struct {
	EndUserID   int64   `json:"end_user_id" validate:"required,gt=0"`
	Kind        string  `json:"kind" validate:"required"`
	Amount      int64   `json:"amount" validate:"omitempty,gt=0"`
	Description string  `json:"description" validate:"omitempty,max=512"`
	ReferenceID *string `json:"reference_id" validate:"omitempty,max=128"`
}

// CreditBalances returns the per-kind balances for one end-user. Users that
// have never held credits get explicit zero balances.
func CreditBalances(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := middleware.TenantFromContext(r.Context())
		if svc == nil || tenant == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		endUserID, err := validators.ParseQueryInt64(r, "end_user_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.Balances(r.Context(), tenant.ID, endUserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, balancesDTO(account))
	}
}

// CreditDeduct atomically charges one end-user for a generation call.
func CreditDeduct(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := middleware.TenantFromContext(r.Context())
		if svc == nil || tenant == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		var body deductPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind, err := enums.ParseCreditKind(body.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid credit kind"))
			return
		}

		// One generation call costs one credit unless the plugin says otherwise.
		if body.Amount == 0 {
			body.Amount = 1
		}

		result, err := svc.Deduct(r.Context(), credits.DeductInput{
			TenantID:    tenant.ID,
			EndUserID:   body.EndUserID,
			Kind:        kind,
			Amount:      body.Amount,
			Description: body.Description,
			ReferenceID: body.ReferenceID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"kind":           string(kind),
			"deducted":       body.Amount,
			"balance_after":  result.BalanceAfter,
			"transaction_id": result.Transaction.ID.String(),
		})
	}
}

// CreditHistory returns the end-user's ledger, newest first.
func CreditHistory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := middleware.TenantFromContext(r.Context())
		if svc == nil || tenant == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		endUserID, err := validators.ParseQueryInt64(r, "end_user_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, next, err := svc.HistoryForUser(r.Context(), tenant.ID, endUserID, pagination.Params{
			Limit:  limit,
			Cursor: validators.QueryCursor(r),
		})
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
			"next_cursor": next,
		})
	}
}

func balancesDTO(account *models.CreditAccount) map[string]any {
	return map[string]any{
		"end_user_id": account.EndUserID,
		"balances": map[string]int64{
			string(enums.CreditKindArticle): account.ArticleCredits,
			string(enums.CreditKindImage):   account.ImageCredits,
			string(enums.CreditKindRewrite): account.RewriteCredits,
		},
	}
}

func transactionDTO(tx models.CreditTransaction) map[string]any {
	entry := map[string]any{
		"id":            tx.ID.String(),
		"end_user_id":   tx.EndUserID,
		"type":          string(tx.Type),
		"kind":          string(tx.Kind),
		"amount":        tx.Amount,
		"balance_after": tx.BalanceAfter,
		"description":   tx.Description,
		"created_at":    tx.CreatedAt,
	}
	if tx.ReferenceID != nil {
		entry["reference_id"] = *tx.ReferenceID
	}
	return entry
}
