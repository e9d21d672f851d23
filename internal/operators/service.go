package operators

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scribewell/plugin-gateway/pkg/auth"
	"github.com/scribewell/plugin-gateway/pkg/config"
	"github.com/scribewell/plugin-gateway/pkg/db"
	"github.com/scribewell/plugin-gateway/pkg/db/models"
	"github.com/scribewell/plugin-gateway/pkg/enums"
	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
	"github.com/scribewell/plugin-gateway/pkg/security"
)

// Service manages operator accounts and dashboard sign-in.
type Service interface {
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	Create(ctx context.Context, input CreateInput) (*models.Operator, error)
	List(ctx context.Context) ([]models.Operator, error)
	EnsureBootstrapAdmin(ctx context.Context, email, password string) error
}

// LoginInput is the dashboard sign-in payload.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginResult carries the minted access token and its subject.
type LoginResult struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Operator  *models.Operator `json:"operator"`
}

// CreateInput provisions a new operator account.
type CreateInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=12"`
	Role     string `json:"role" validate:"required"`
}

// ServiceParams wires the operator service dependencies.
type ServiceParams struct {
	Repo     Repository
	JWT      config.JWTConfig
	Password config.PasswordConfig
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	jwt      config.JWTConfig
	password config.PasswordConfig
	logg     *logger.Logger
}

// NewService validates dependencies and returns an operator service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("operator repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		jwt:      params.JWT,
		password: params.Password,
		logg:     params.Logger,
	}, nil
}

// Login verifies the password and mints a role-scoped access token. Unknown
// email and wrong password answer identically.
func (s *service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	invalid := pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")

	operator, err := s.repo.FindByEmail(ctx, input.Email)
	if err == ErrNotFound {
		return nil, invalid
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up operator")
	}

	ok, err := security.VerifyPassword(input.Password, operator.PasswordHash)
	if err != nil || !ok {
		return nil, invalid
	}
	if !operator.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "operator account is disabled")
	}

	now := time.Now().UTC()
	token, err := auth.MintOperatorToken(s.jwt, now, auth.OperatorTokenPayload{
		OperatorID: operator.ID,
		Email:      operator.Email,
		Role:       operator.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}

	if err := s.repo.UpdateLastLogin(ctx, operator.ID, now); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"operator_id": operator.ID.String(),
			"error":       err.Error(),
		}), "recording operator login failed")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"operator_id": operator.ID.String(),
		"role":        string(operator.Role),
	}), "operator logged in")

	return &LoginResult{
		Token:     token,
		ExpiresAt: now.Add(time.Duration(s.jwt.ExpirationMinutes) * time.Minute),
		Operator:  operator,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Operator, error) {
	role, err := enums.ParseOperatorRole(strings.TrimSpace(input.Role))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid operator role %q", input.Role))
	}

	hash, err := security.HashPassword(input.Password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "hashing password")
	}

	operator := &models.Operator{
		Email:        input.Email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, operator); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "operator email already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating operator")
	}
	return operator, nil
}

// EnsureBootstrapAdmin seeds the first admin account so a fresh deployment
// can sign in to the dashboard. An existing account with the email always
// wins; its password and role are never touched.
func (s *service) EnsureBootstrapAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}

	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if err != ErrNotFound {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up bootstrap admin")
	}

	_, err = s.Create(ctx, CreateInput{
		Email:    email,
		Password: password,
		Role:     string(enums.OperatorRoleAdmin),
	})
	if err != nil {
		// A concurrent instance won the seed race; that account serves.
		if pkgerrors.CodeOf(err) == pkgerrors.CodeConflict {
			return nil
		}
		return err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"email": email}), "bootstrap admin created")
	return nil
}

func (s *service) List(ctx context.Context) ([]models.Operator, error) {
	operators, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing operators")
	}
	return operators, nil
}
