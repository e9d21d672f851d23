package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const credentialBytes = 32

// GenerateAPIToken returns a 256-bit random bearer credential, hex-encoded.
// Tokens are never derivable from the instance id and are looked up via the
// tenants table's unique index, never by scan.
func GenerateAPIToken() (string, error) {
	return randomHex("sw_tok")
}

// GenerateSigningSecret returns a 256-bit random webhook signing secret,
// unrelated to the API token.
func GenerateSigningSecret() (string, error) {
	return randomHex("sw_whs")
}

func randomHex(prefix string) (string, error) {
	buf := make([]byte, credentialBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random source: %w", err)
	}
	return prefix + "_" + hex.EncodeToString(buf), nil
}
