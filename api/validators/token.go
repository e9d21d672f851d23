package validators

import (
	"net/http"
	"strings"
)

// BearerToken extracts the token from an Authorization header. Returns ""
// when the header is missing or not a bearer scheme.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return ""
	}
	return strings.TrimSpace(raw[7:])
}

// InstanceID extracts the plugin instance identifier header.
func InstanceID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Instance-Id"))
}
