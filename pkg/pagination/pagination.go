package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLimit is the page size used when the caller does not ask for one.
	DefaultLimit = 50
	// MaxLimit caps how many rows any cursor query can request.
	MaxLimit = 200
)

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor keys a row by creation time with the id as tiebreaker.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Clamp enforces the default and maximum page sizes.
func Clamp(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// FetchLimit returns the clamped limit plus one so callers can detect a next page.
func FetchLimit(limit int) int {
	return Clamp(limit) + 1
}

// Encode builds an opaque cursor token from the row key.
func Encode(c Cursor) string {
	payload := fmt.Sprintf("%d|%s", c.CreatedAt.UTC().UnixMicro(), c.ID.String())
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// Decode parses a cursor token back into its row key. An empty token
// yields a nil cursor, meaning start from the newest row.
func Decode(token string) (*Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed cursor")
	}

	var micros int64
	if _, err := fmt.Sscanf(parts[0], "%d", &micros); err != nil {
		return nil, fmt.Errorf("malformed cursor timestamp: %w", err)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, fmt.Errorf("malformed cursor id: %w", err)
	}
	return &Cursor{CreatedAt: time.UnixMicro(micros).UTC(), ID: id}, nil
}

// Page trims a buffered result set fetched with FetchLimit down to the
// requested size and reports the cursor for the next page, if any.
func Page[T any](rows []T, limit int, key func(T) Cursor) ([]T, string) {
	limit = Clamp(limit)
	if len(rows) <= limit {
		return rows, ""
	}
	trimmed := rows[:limit]
	return trimmed, Encode(key(trimmed[len(trimmed)-1]))
}
