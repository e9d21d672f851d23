package usage

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
	"github.com/scribewell/plugin-gateway/pkg/logger"
	"github.com/scribewell/plugin-gateway/pkg/pagination"
)

func setupUsage(t *testing.T) (Service, *gorm.DB) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:usage_test_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS usage_records (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  end_user_id INTEGER NOT NULL,
  content_kind TEXT NOT NULL,
  prompt TEXT NOT NULL,
  result_length INTEGER NOT NULL DEFAULT 0,
  credits_charged INTEGER NOT NULL DEFAULT 0,
  latency_ms INTEGER NOT NULL DEFAULT 0,
  outcome TEXT NOT NULL,
  error_text TEXT,
  created_at DATETIME
);`
	require.NoError(t, conn.Exec(ddl).Error)

	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(conn),
		Logger: logger.New(logger.Options{ServiceName: "test"}),
	})
	require.NoError(t, err)
	return svc, conn
}

func TestRecordPersistsAndTruncatesPrompt(t *testing.T) {
	svc, conn := setupUsage(t)
	ctx := context.Background()
	tenantID := uuid.New()

	svc.Record(ctx, RecordInput{
		TenantID:       tenantID,
		EndUserID:      1,
		ContentKind:    enums.CreditKindArticle,
		Prompt:         strings.Repeat("x", maxPromptLength+500),
		ResultLength:   4200,
		CreditsCharged: 1,
		LatencyMS:      1800,
		Outcome:        enums.UsageOutcomeSuccess,
	})

	var record models.UsageRecord
	require.NoError(t, conn.Where("tenant_id = ?", tenantID).First(&record).Error)
	assert.Len(t, record.Prompt, maxPromptLength)
	assert.EqualValues(t, 1, record.CreditsCharged)
}

func TestRecordTruncatesOnRuneBoundary(t *testing.T) {
	svc, conn := setupUsage(t)
	ctx := context.Background()
	tenantID := uuid.New()

	// Three-byte runes guarantee the byte limit lands mid-sequence.
	svc.Record(ctx, RecordInput{
		TenantID:       tenantID,
		EndUserID:      2,
		ContentKind:    enums.CreditKindArticle,
		Prompt:         strings.Repeat("記", maxPromptLength),
		ResultLength:   100,
		CreditsCharged: 1,
		LatencyMS:      900,
		Outcome:        enums.UsageOutcomeSuccess,
	})

	var record models.UsageRecord
	require.NoError(t, conn.Where("tenant_id = ?", tenantID).First(&record).Error)
	assert.True(t, utf8.ValidString(record.Prompt))
	assert.LessOrEqual(t, len(record.Prompt), maxPromptLength)
	assert.NotEmpty(t, record.Prompt)
}

func TestRecordDropsMalformedInput(t *testing.T) {
	svc, conn := setupUsage(t)
	tenantID := uuid.New()

	svc.Record(context.Background(), RecordInput{
		TenantID:    tenantID,
		ContentKind: enums.CreditKind("video"),
		Outcome:     enums.UsageOutcomeSuccess,
	})
	svc.Record(context.Background(), RecordInput{
		TenantID:    uuid.Nil,
		ContentKind: enums.CreditKindArticle,
		Outcome:     enums.UsageOutcomeSuccess,
	})

	var count int64
	require.NoError(t, conn.Model(&models.UsageRecord{}).
		Where("tenant_id = ?", tenantID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestReportAggregatesByKindAndOutcome(t *testing.T) {
	svc, _ := setupUsage(t)
	ctx := context.Background()
	tenantID := uuid.New()

	inputs := []RecordInput{
		{ContentKind: enums.CreditKindArticle, Outcome: enums.UsageOutcomeSuccess, CreditsCharged: 1, LatencyMS: 100},
		{ContentKind: enums.CreditKindArticle, Outcome: enums.UsageOutcomeSuccess, CreditsCharged: 1, LatencyMS: 300},
		{ContentKind: enums.CreditKindArticle, Outcome: enums.UsageOutcomeError, LatencyMS: 50},
		{ContentKind: enums.CreditKindImage, Outcome: enums.UsageOutcomeSuccess, CreditsCharged: 1, LatencyMS: 400},
	}
	for _, in := range inputs {
		in.TenantID = tenantID
		in.EndUserID = 1
		in.Prompt = "p"
		svc.Record(ctx, in)
	}

	now := time.Now().UTC()
	rows, err := svc.Report(ctx, tenantID, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byKey := map[string]ReportRow{}
	for _, row := range rows {
		byKey[string(row.ContentKind)+"/"+string(row.Outcome)] = row
	}

	articleOK := byKey["article/success"]
	assert.EqualValues(t, 2, articleOK.Calls)
	assert.EqualValues(t, 2, articleOK.Credits)
	assert.InDelta(t, 200, articleOK.AvgLatencyMS, 0.01)

	assert.EqualValues(t, 1, byKey["article/error"].Calls)
	assert.EqualValues(t, 1, byKey["image/success"].Calls)
}

func TestReportRejectsInvertedRange(t *testing.T) {
	svc, _ := setupUsage(t)

	now := time.Now().UTC()
	_, err := svc.Report(context.Background(), uuid.New(), now, now.Add(-time.Hour))
	require.Error(t, err)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	svc, _ := setupUsage(t)
	ctx := context.Background()
	tenantID := uuid.New()

	for i := 0; i < 7; i++ {
		svc.Record(ctx, RecordInput{
			TenantID:    tenantID,
			EndUserID:   int64(i),
			ContentKind: enums.CreditKindRewrite,
			Prompt:      "p",
			Outcome:     enums.UsageOutcomeSuccess,
		})
		time.Sleep(2 * time.Millisecond)
	}

	page, next, err := svc.List(ctx, tenantID, pagination.Params{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, page, 5)
	require.NotEmpty(t, next)

	rest, _, err := svc.List(ctx, tenantID, pagination.Params{Limit: 5, Cursor: next})
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}
