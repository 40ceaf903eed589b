package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the ledger row for a chat-platform member, keyed by their
// platform ID. Rows are provisioned lazily on first balance touch.
type User struct {
	ID                   string          `gorm:"column:id;primaryKey"`
	Balance              decimal.Decimal `gorm:"column:balance;type:numeric(10,2);not null;default:0"`
	LifetimeSpent        decimal.Decimal `gorm:"column:lifetime_spent;type:numeric(10,2);not null;default:0"`
	DeliveryValueHandled decimal.Decimal `gorm:"column:delivery_value_handled;type:numeric(10,2);not null;default:0"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
