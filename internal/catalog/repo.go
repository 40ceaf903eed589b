package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/pkg/db/models"
)

// ItemRepository is the persistence surface the service consumes.
type ItemRepository interface {
	WithTx(tx *gorm.DB) ItemRepository
	Create(ctx context.Context, item *models.Item) (*models.Item, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	FindByName(ctx context.Context, name string) (*models.Item, error)
	List(ctx context.Context) ([]models.Item, error)
	AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repository exposes persistence operations for shop items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an item repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) ItemRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new item.
func (r *Repository) Create(ctx context.Context, item *models.Item) (*models.Item, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// FindByID loads one item by its ID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByName loads one item by its unique name.
func (r *Repository) FindByName(ctx context.Context, name string) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// List returns every item ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// AdjustQuantity applies a guarded stock delta. The WHERE clause keeps
// quantity from going negative; callers must treat zero rows affected
// as insufficient stock.
func (r *Repository) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND quantity + ? >= 0", id, delta).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	return result.RowsAffected, result.Error
}

// Delete removes an item.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Item{}).Error
}
