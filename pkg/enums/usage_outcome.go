package enums

import "fmt"

// UsageOutcome records how a metered generation call ended.
type UsageOutcome string

const (
	UsageOutcomeSuccess UsageOutcome = "success"
	UsageOutcomeFailed  UsageOutcome = "failed"
	UsageOutcomeError   UsageOutcome = "error"
)

var validUsageOutcomes = []UsageOutcome{
	UsageOutcomeSuccess,
	UsageOutcomeFailed,
	UsageOutcomeError,
}

// IsValid reports whether the outcome is recognized.
func (o UsageOutcome) IsValid() bool {
	for _, candidate := range validUsageOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseUsageOutcome converts a raw string into a UsageOutcome.
func ParseUsageOutcome(value string) (UsageOutcome, error) {
	for _, candidate := range validUsageOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid usage outcome %q", value)
}
