package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scribewell/plugin-gateway/pkg/config"
	"github.com/scribewell/plugin-gateway/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "scribewell", ExpirationMinutes: 10}
}

func TestMintAndParseOperatorToken(t *testing.T) {
	cfg := testJWTConfig()
	operatorID := uuid.New()

	signed, err := MintOperatorToken(cfg, time.Now(), OperatorTokenPayload{
		OperatorID: operatorID,
		Email:      "ops@scribewell.io",
		Role:       enums.OperatorRoleAdmin,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims, err := ParseOperatorToken(cfg, signed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.OperatorID != operatorID {
		t.Fatalf("expected operator id %s, got %s", operatorID, claims.OperatorID)
	}
	if claims.Role != enums.OperatorRoleAdmin {
		t.Fatalf("expected admin role, got %s", claims.Role)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	signed, err := MintOperatorToken(cfg, time.Now().Add(-time.Hour), OperatorTokenPayload{
		OperatorID: uuid.New(),
		Role:       enums.OperatorRoleSupport,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseOperatorToken(cfg, signed); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	signed, err := MintOperatorToken(config.JWTConfig{Secret: "secret", Issuer: "other", ExpirationMinutes: 10}, time.Now(), OperatorTokenPayload{
		OperatorID: uuid.New(),
		Role:       enums.OperatorRoleAdmin,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseOperatorToken(testJWTConfig(), signed); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}

func TestMintRejectsInvalidRole(t *testing.T) {
	if _, err := MintOperatorToken(testJWTConfig(), time.Now(), OperatorTokenPayload{
		OperatorID: uuid.New(),
		Role:       enums.OperatorRole("superuser"),
	}); err == nil {
		t.Fatal("expected invalid role to be rejected")
	}
}
