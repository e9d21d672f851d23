package validators

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
)

type deductBody struct {
	EndUserID int64  `json:"end_user_id" validate:"required,gt=0"`
	Kind      string `json:"kind" validate:"required,oneof=article image rewrite"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
}

func TestDecodeJSONBodyValid(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"end_user_id":42,"kind":"article","amount":3}`))

	var body deductBody
	require.NoError(t, DecodeJSONBody(req, &body))
	assert.Equal(t, int64(42), body.EndUserID)
	assert.Equal(t, "article", body.Kind)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"end_user_id":42,"kind":"article","amount":3,"extra":true}`))

	var body deductBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestDecodeJSONBodyValidationDetails(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"end_user_id":42,"kind":"video","amount":0}`))

	var body deductBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "kind")
	assert.Contains(t, details, "amount")
}

func TestParseQueryIntBounds(t *testing.T) {
	req := httptest.NewRequest("GET", "/?limit=500", nil)
	_, err := ParseQueryInt(req, "limit", 50, 1, 200)
	require.Error(t, err)

	req = httptest.NewRequest("GET", "/", nil)
	got, err := ParseQueryInt(req, "limit", 50, 1, 200)
	require.NoError(t, err)
	assert.Equal(t, 50, got)
}

func TestParseQueryTime(t *testing.T) {
	req := httptest.NewRequest("GET", "/?since=2026-08-01T00:00:00Z", nil)
	ts, err := ParseQueryTime(req, "since")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), ts)

	req = httptest.NewRequest("GET", "/?since=yesterday", nil)
	_, err = ParseQueryTime(req, "since")
	require.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer  swp_abc123 ")
	assert.Equal(t, "swp_abc123", BearerToken(req))

	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, BearerToken(req))

	req.Header.Del("Authorization")
	assert.Empty(t, BearerToken(req))
}

func TestSanitizeStringTruncates(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  abcdef  ", 3))
	assert.Equal(t, "abcdef", SanitizeString("abcdef", 0))
}
