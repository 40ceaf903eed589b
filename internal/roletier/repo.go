package roletier

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/pkg/db/models"
)

// TierRepository is the persistence surface for spend tiers.
type TierRepository interface {
	WithTx(tx *gorm.DB) TierRepository
	Create(ctx context.Context, tier *models.RoleTier) (*models.RoleTier, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.RoleTier, error)
	List(ctx context.Context) ([]models.RoleTier, error)
	ListReached(ctx context.Context, spent decimal.Decimal) ([]models.RoleTier, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repository persists role tiers.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a tier repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) TierRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new tier.
func (r *Repository) Create(ctx context.Context, tier *models.RoleTier) (*models.RoleTier, error) {
	if tier.ID == uuid.Nil {
		tier.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(tier).Error; err != nil {
		return nil, err
	}
	return tier, nil
}

// FindByID loads one tier.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RoleTier, error) {
	var tier models.RoleTier
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tier).Error; err != nil {
		return nil, err
	}
	return &tier, nil
}

// List returns every tier ordered by threshold, lowest first.
func (r *Repository) List(ctx context.Context) ([]models.RoleTier, error) {
	var tiers []models.RoleTier
	if err := r.db.WithContext(ctx).Order("threshold ASC").Find(&tiers).Error; err != nil {
		return nil, err
	}
	return tiers, nil
}

// ListReached returns the tiers whose threshold is at or below the
// given lifetime spend, lowest first.
func (r *Repository) ListReached(ctx context.Context, spent decimal.Decimal) ([]models.RoleTier, error) {
	var tiers []models.RoleTier
	if err := r.db.WithContext(ctx).
		Where("threshold <= ?", spent).
		Order("threshold ASC").
		Find(&tiers).Error; err != nil {
		return nil, err
	}
	return tiers, nil
}

// Delete removes a tier.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.RoleTier{}).Error
}
