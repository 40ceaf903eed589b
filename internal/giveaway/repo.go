package giveaway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blockmart/blockmart-backend/pkg/db/models"
	"github.com/blockmart/blockmart-backend/pkg/enums"
)

// GiveawayRepository is the persistence surface for drawings and
// their entrants.
type GiveawayRepository interface {
	WithTx(tx *gorm.DB) GiveawayRepository
	Create(ctx context.Context, giveaway *models.Giveaway) (*models.Giveaway, error)
	FindActive(ctx context.Context) (*models.Giveaway, error)
	FindExpiredActive(ctx context.Context, now time.Time) ([]models.Giveaway, error)
	MarkEnded(ctx context.Context, id uuid.UUID, winnerID *string) (int64, error)
	AddEntrant(ctx context.Context, giveawayID uuid.UUID, userID string) (bool, error)
	ListEntrants(ctx context.Context, giveawayID uuid.UUID) ([]models.GiveawayEntrant, error)
	CountEntrants(ctx context.Context, giveawayID uuid.UUID) (int64, error)
}

// Repository persists giveaways.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a giveaway repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) GiveawayRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new drawing.
func (r *Repository) Create(ctx context.Context, giveaway *models.Giveaway) (*models.Giveaway, error) {
	if giveaway.ID == uuid.Nil {
		giveaway.ID = uuid.New()
	}
	if giveaway.Status == "" {
		giveaway.Status = enums.GiveawayStatusActive
	}
	if err := r.db.WithContext(ctx).Create(giveaway).Error; err != nil {
		return nil, err
	}
	return giveaway, nil
}

// FindActive loads the single active drawing.
func (r *Repository) FindActive(ctx context.Context) (*models.Giveaway, error) {
	var giveaway models.Giveaway
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.GiveawayStatusActive).
		Order("created_at DESC").
		First(&giveaway).Error
	if err != nil {
		return nil, err
	}
	return &giveaway, nil
}

// FindExpiredActive lists active drawings whose end time has passed.
func (r *Repository) FindExpiredActive(ctx context.Context, now time.Time) ([]models.Giveaway, error) {
	var giveaways []models.Giveaway
	err := r.db.WithContext(ctx).
		Where("status = ? AND ends_at <= ?", enums.GiveawayStatusActive, now).
		Find(&giveaways).Error
	return giveaways, err
}

// MarkEnded flips an active drawing to ended, recording the winner.
// The status guard makes concurrent rotation sweeps idempotent.
func (r *Repository) MarkEnded(ctx context.Context, id uuid.UUID, winnerID *string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Giveaway{}).
		Where("id = ? AND status = ?", id, enums.GiveawayStatusActive).
		Updates(map[string]any{
			"status":    enums.GiveawayStatusEnded,
			"winner_id": winnerID,
		})
	return result.RowsAffected, result.Error
}

// AddEntrant records one entry, reporting whether the row was new.
// Re-entries hit the unique pair index and are silently absorbed.
func (r *Repository) AddEntrant(ctx context.Context, giveawayID uuid.UUID, userID string) (bool, error) {
	entrant := models.GiveawayEntrant{
		ID:         uuid.New(),
		GiveawayID: giveawayID,
		UserID:     userID,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "giveaway_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&entrant)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListEntrants returns every entry for a drawing.
func (r *Repository) ListEntrants(ctx context.Context, giveawayID uuid.UUID) ([]models.GiveawayEntrant, error) {
	var entrants []models.GiveawayEntrant
	err := r.db.WithContext(ctx).
		Where("giveaway_id = ?", giveawayID).
		Order("created_at ASC").
		Find(&entrants).Error
	return entrants, err
}

// CountEntrants returns the number of entries for a drawing.
func (r *Repository) CountEntrants(ctx context.Context, giveawayID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.GiveawayEntrant{}).
		Where("giveaway_id = ?", giveawayID).
		Count(&count).Error
	return count, err
}
