package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/pkg/db/models"
	"github.com/blockmart/blockmart-backend/pkg/enums"
)

// ItemCount is a per-item aggregate row.
type ItemCount struct {
	ItemID uuid.UUID `gorm:"column:item_id"`
	Units  int64     `gorm:"column:units"`
}

// EventRepository is the persistence surface for purchase facts.
type EventRepository interface {
	WithTx(tx *gorm.DB) EventRepository
	InsertBatch(ctx context.Context, events []models.PurchaseEvent) error
	CountByItem(ctx context.Context, itemID uuid.UUID, since time.Time) (int64, error)
	CountAll(ctx context.Context, since time.Time) (int64, error)
	TopItems(ctx context.Context, since time.Time, limit int) ([]ItemCount, error)
	DistinctBuyers(ctx context.Context, since time.Time) (int64, error)
}

// Repository persists purchase events.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an event repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) EventRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// InsertBatch writes one row per event in a single statement.
func (r *Repository) InsertBatch(ctx context.Context, events []models.PurchaseEvent) error {
	if len(events) == 0 {
		return nil
	}
	for i := range events {
		if events[i].ID == uuid.Nil {
			events[i].ID = uuid.New()
		}
		if events[i].EventType == "" {
			events[i].EventType = enums.EventTypePurchase
		}
	}
	return r.db.WithContext(ctx).Create(&events).Error
}

// CountByItem returns the units sold for one item since the cutoff.
func (r *Repository) CountByItem(ctx context.Context, itemID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.scoped(ctx, since).
		Where("item_id = ?", itemID).
		Count(&count).Error
	return count, err
}

// CountAll returns the total units sold since the cutoff.
func (r *Repository) CountAll(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.scoped(ctx, since).Count(&count).Error
	return count, err
}

// TopItems returns items ordered by units sold since the cutoff.
func (r *Repository) TopItems(ctx context.Context, since time.Time, limit int) ([]ItemCount, error) {
	var rows []ItemCount
	err := r.scoped(ctx, since).
		Select("item_id, COUNT(*) AS units").
		Group("item_id").
		Order("units DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// DistinctBuyers returns the number of unique buyers since the cutoff.
func (r *Repository) DistinctBuyers(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.scoped(ctx, since).
		Distinct("user_id").
		Count(&count).Error
	return count, err
}

func (r *Repository) scoped(ctx context.Context, since time.Time) *gorm.DB {
	query := r.db.WithContext(ctx).
		Model(&models.PurchaseEvent{}).
		Where("event_type = ?", enums.EventTypePurchase)
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	return query
}
