package usage

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
	"github.com/scribewell/plugin-gateway/pkg/pagination"
)

// maxPromptLength bounds what gets stored; prompts beyond it are truncated,
// never rejected.
const maxPromptLength = 2000

// Service records and reports generation activity. Records feed reporting
// only; they are never consulted for balance correctness.
type Service interface {
	Record(ctx context.Context, input RecordInput)
	List(ctx context.Context, tenantID uuid.UUID, params pagination.Params) ([]models.UsageRecord, string, error)
	Report(ctx context.Context, tenantID uuid.UUID, since, until time.Time) ([]ReportRow, error)
}

// RecordInput captures one metered generation call.
type RecordInput struct {
	TenantID       uuid.UUID
	EndUserID      int64
	ContentKind    enums.CreditKind
	Prompt         string
	ResultLength   int
	CreditsCharged int64
	LatencyMS      int64
	Outcome        enums.UsageOutcome
	ErrorText      *string
}

// ServiceParams wires the usage service dependencies.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService validates dependencies and returns a usage service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("usage repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

// Record is fire-and-forget: a failed insert is logged and dropped so usage
// bookkeeping can never fail the request that produced it.
func (s *service) Record(ctx context.Context, input RecordInput) {
	if input.TenantID == uuid.Nil || !input.ContentKind.IsValid() || !input.Outcome.IsValid() {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"tenant_id":    input.TenantID.String(),
			"content_kind": string(input.ContentKind),
			"outcome":      string(input.Outcome),
		}), "dropping malformed usage record")
		return
	}

	prompt := truncatePrompt(input.Prompt, maxPromptLength)

	record := &models.UsageRecord{
		TenantID:       input.TenantID,
		EndUserID:      input.EndUserID,
		ContentKind:    input.ContentKind,
		Prompt:         prompt,
		ResultLength:   input.ResultLength,
		CreditsCharged: input.CreditsCharged,
		LatencyMS:      input.LatencyMS,
		Outcome:        input.Outcome,
		ErrorText:      input.ErrorText,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"tenant_id": input.TenantID.String(),
			"error":     err.Error(),
		}), "usage record insert failed")
	}
}

// truncatePrompt cuts on a rune boundary so the stored prompt stays valid
// UTF-8; postgres rejects TEXT values with a split multibyte sequence.
func truncatePrompt(prompt string, max int) string {
	if len(prompt) <= max {
		return prompt
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(prompt[cut]) {
		cut--
	}
	return prompt[:cut]
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID, params pagination.Params) ([]models.UsageRecord, string, error) {
	if tenantID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	cursor, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parsing cursor")
	}

	rows, err := s.repo.ListByTenant(ctx, tenantID, cursor, pagination.FetchLimit(params.Limit))
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing usage records")
	}

	page, next := pagination.Page(rows, params.Limit, func(r models.UsageRecord) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	return page, next, nil
}

func (s *service) Report(ctx context.Context, tenantID uuid.UUID, since, until time.Time) ([]ReportRow, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if until.IsZero() {
		until = time.Now().UTC()
	}
	if since.IsZero() {
		since = until.Add(-30 * 24 * time.Hour)
	}
	if !since.Before(until) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "since must precede until")
	}

	rows, err := s.repo.Report(ctx, tenantID, since, until)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building usage report")
	}
	return rows, nil
}
