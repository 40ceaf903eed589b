package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoleTier maps a lifetime-spend threshold to a platform role. Tiers
// are additive: a buyer keeps every role whose threshold they passed.
type RoleTier struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RoleRef   string          `gorm:"column:role_ref;not null;uniqueIndex"`
	Threshold decimal.Decimal `gorm:"column:threshold;type:numeric(10,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
