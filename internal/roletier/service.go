package roletier

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/blockmart/blockmart-backend/pkg/db/models"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

// userLoader is the slice of the ledger the service needs.
type userLoader interface {
	FindOrCreate(ctx context.Context, userID string) (*models.User, error)
}

// roleGranter is the slice of the platform gateway the service needs.
type roleGranter interface {
	GrantRole(ctx context.Context, userID, roleRef string) error
}

// CreateTierInput captures the fields needed for a new tier.
type CreateTierInput struct {
	RoleRef   string
	Threshold decimal.Decimal
}

// Service manages spend tiers and applies them to buyers.
type Service interface {
	Create(ctx context.Context, input CreateTierInput) (*models.RoleTier, error)
	List(ctx context.Context) ([]models.RoleTier, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Evaluate grants the user every tier role their lifetime spend has
	// reached. Roles are only ever added, never removed.
	Evaluate(ctx context.Context, userID string) ([]string, error)
}

type service struct {
	repo    TierRepository
	users   userLoader
	gateway roleGranter
	logger  *logger.Logger
}

// NewService wires the role tier service.
func NewService(repo TierRepository, users userLoader, gateway roleGranter, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tier repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("platform gateway required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, users: users, gateway: gateway, logger: log}, nil
}

func (s *service) Create(ctx context.Context, input CreateTierInput) (*models.RoleTier, error) {
	roleRef := strings.TrimSpace(input.RoleRef)
	if roleRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role reference required")
	}
	if !input.Threshold.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tier threshold must be positive")
	}

	tier := &models.RoleTier{RoleRef: roleRef, Threshold: input.Threshold}
	created, err := s.repo.Create(ctx, tier)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "tier could not be created")
	}
	return created, nil
}

func (s *service) List(ctx context.Context) ([]models.RoleTier, error) {
	return s.repo.List(ctx)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tier id required")
	}
	return s.repo.Delete(ctx, id)
}

func (s *service) Evaluate(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	user, err := s.users.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "user could not be loaded")
	}

	reached, err := s.repo.ListReached(ctx, user.LifetimeSpent)
	if err != nil {
		return nil, err
	}

	granted := make([]string, 0, len(reached))
	for _, tier := range reached {
		if err := s.gateway.GrantRole(ctx, userID, tier.RoleRef); err != nil {
			// A failed grant is retried on the next purchase; the order
			// itself must not fail because of it.
			warnCtx := s.logger.WithFields(ctx, map[string]any{
				"user_id":  userID,
				"role_ref": tier.RoleRef,
				"error":    err.Error(),
			})
			s.logger.Warn(warnCtx, "role grant failed")
			continue
		}
		granted = append(granted, tier.RoleRef)
	}
	return granted, nil
}
