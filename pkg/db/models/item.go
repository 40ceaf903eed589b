package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a shop listing. Quantity is the live stock level; carts
// reserve stock by decrementing it the moment an item lands in a cart.
type Item struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string          `gorm:"column:name;not null;uniqueIndex"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Description string          `gorm:"column:description;not null;default:''"`
	ImageURL    *string         `gorm:"column:image_url"`
	Quantity    int             `gorm:"column:quantity;not null;default:0"`
	MessageID   *string         `gorm:"column:message_id"`
	ChannelID   *string         `gorm:"column:channel_id"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
