package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blockmart/blockmart-backend/pkg/db/models"
)

// UserRepository is the persistence surface for user balances and
// spend counters.
type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	FindOrCreate(ctx context.Context, userID string) (*models.User, error)
	FindByID(ctx context.Context, userID string) (*models.User, error)
	Credit(ctx context.Context, userID string, amount decimal.Decimal) (int64, error)
	Debit(ctx context.Context, userID string, amount decimal.Decimal) (int64, error)
	SetBalance(ctx context.Context, userID string, balance decimal.Decimal) (int64, error)
	AddLifetimeSpent(ctx context.Context, userID string, amount decimal.Decimal) (int64, error)
	AddDeliveryValue(ctx context.Context, userID string, amount decimal.Decimal) (int64, error)
	TopSpenders(ctx context.Context, limit int) ([]models.User, error)
}

// Repository persists users and their running balances.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a user repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) UserRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindOrCreate loads a user, inserting a zero-balance row if none
// exists yet. The insert is conflict-safe so concurrent callers
// converge on the same row.
func (r *Repository) FindOrCreate(ctx context.Context, userID string) (*models.User, error) {
	user := &models.User{
		ID:                   userID,
		Balance:              decimal.Zero,
		LifetimeSpent:        decimal.Zero,
		DeliveryValueHandled: decimal.Zero,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(user).Error
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, userID)
}

// FindByID loads one user.
func (r *Repository) FindByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Credit adds amount to the user's balance.
func (r *Repository) Credit(ctx context.Context, userID string, amount decimal.Decimal) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount))
	return result.RowsAffected, result.Error
}

// Debit subtracts amount from the user's balance. The WHERE clause
// keeps the balance from going negative; callers must treat zero rows
// affected as insufficient funds.
func (r *Repository) Debit(ctx context.Context, userID string, amount decimal.Decimal) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND balance - ? >= 0", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	return result.RowsAffected, result.Error
}

// SetBalance overwrites the user's balance.
func (r *Repository) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("balance", balance)
	return result.RowsAffected, result.Error
}

// AddLifetimeSpent bumps the user's lifetime spend counter.
func (r *Repository) AddLifetimeSpent(ctx context.Context, userID string, amount decimal.Decimal) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("lifetime_spent", gorm.Expr("lifetime_spent + ?", amount))
	return result.RowsAffected, result.Error
}

// AddDeliveryValue bumps the value-handled counter for a delivery agent.
func (r *Repository) AddDeliveryValue(ctx context.Context, userID string, amount decimal.Decimal) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("delivery_value_handled", gorm.Expr("delivery_value_handled + ?", amount))
	return result.RowsAffected, result.Error
}

// TopSpenders returns users ordered by lifetime spend, highest first.
func (r *Repository) TopSpenders(ctx context.Context, limit int) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Order("lifetime_spent DESC").
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
