package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/scribewell/plugin-gateway/pkg/enums"
)

// OperatorTokenPayload carries the values minted into an operator access token.
type OperatorTokenPayload struct {
	OperatorID uuid.UUID
	Email      string
	Role       enums.OperatorRole
}

// OperatorClaims are the typed JWT claims for dashboard operators. The role is
// data-driven authorization: admin routes check the claim, not a code-level
// allow-list.
type OperatorClaims struct {
	OperatorID uuid.UUID          `json:"operator_id"`
	Email      string             `json:"email"`
	Role       enums.OperatorRole `json:"role"`
	jwt.RegisteredClaims
}
