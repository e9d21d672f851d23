package enums

import "fmt"

// CreditKind maps to the credit_kind_enum enum in Postgres.
type CreditKind string

const (
	CreditKindArticle CreditKind = "article"
	CreditKindImage   CreditKind = "image"
	CreditKindRewrite CreditKind = "rewrite"
)

var validCreditKinds = []CreditKind{
	CreditKindArticle,
	CreditKindImage,
	CreditKindRewrite,
}

// CreditKinds returns every meterable credit category.
func CreditKinds() []CreditKind {
	kinds := make([]CreditKind, len(validCreditKinds))
	copy(kinds, validCreditKinds)
	return kinds
}

// String implements fmt.Stringer.
func (k CreditKind) String() string {
	return string(k)
}

// IsValid reports whether the value matches the canonical credit kind enum.
func (k CreditKind) IsValid() bool {
	for _, candidate := range validCreditKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseCreditKind converts raw input into CreditKind.
func ParseCreditKind(value string) (CreditKind, error) {
	for _, candidate := range validCreditKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid credit kind %q", value)
}
