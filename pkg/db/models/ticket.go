package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/blockmart/blockmart-backend/pkg/enums"
)

// Ticket is a support conversation backed by a provisioned channel.
type Ticket struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    string             `gorm:"column:user_id;not null;index"`
	ChannelID *string            `gorm:"column:channel_id"`
	Status    enums.TicketStatus `gorm:"column:status;not null;default:'open'"`
	ClosedAt  *time.Time         `gorm:"column:closed_at"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
