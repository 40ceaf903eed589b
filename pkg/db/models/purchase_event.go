package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/blockmart/blockmart-backend/pkg/enums"
)

// PurchaseEvent is one analytics fact row, written per unit sold when
// an order completes.
type PurchaseEvent struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType enums.EventType `gorm:"column:event_type;not null;index"`
	ItemID    uuid.UUID       `gorm:"column:item_id;type:uuid;not null;index"`
	UserID    string          `gorm:"column:user_id;not null;index"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime;index"`
}
