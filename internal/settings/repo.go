package settings

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blockmart/blockmart-backend/pkg/db/models"
)

// SettingsRepository is the persistence surface the service consumes.
type SettingsRepository interface {
	WithTx(tx *gorm.DB) SettingsRepository
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, key, value string) error
	List(ctx context.Context) ([]models.Setting, error)
}

// Repository exposes persistence operations for the settings store.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a settings repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) SettingsRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Get loads one setting row.
func (r *Repository) Get(ctx context.Context, key string) (*models.Setting, error) {
	var row models.Setting
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert writes a setting value, inserting the row when missing.
func (r *Repository) Upsert(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&models.Setting{Key: key, Value: value}).Error
}

// List returns every setting row.
func (r *Repository) List(ctx context.Context) ([]models.Setting, error) {
	var rows []models.Setting
	if err := r.db.WithContext(ctx).Order("key ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
