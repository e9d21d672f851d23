package security

import (
	"strings"
	"testing"
)

func TestGenerateAPIToken(t *testing.T) {
	token, err := GenerateAPIToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(token, "sw_tok_") {
		t.Fatalf("expected token prefix, got %q", token)
	}
	// 32 bytes hex-encoded after the prefix.
	if len(token) != len("sw_tok_")+64 {
		t.Fatalf("unexpected token length %d", len(token))
	}
}

func TestGeneratedCredentialsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		token, err := GenerateAPIToken()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[token] {
			t.Fatal("duplicate token generated")
		}
		seen[token] = true
	}
}

func TestSigningSecretDiffersFromToken(t *testing.T) {
	token, err := GenerateAPIToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	secret, err := GenerateSigningSecret()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == secret {
		t.Fatal("token and secret must be independent")
	}
	if !strings.HasPrefix(secret, "sw_whs_") {
		t.Fatalf("expected secret prefix, got %q", secret)
	}
}
