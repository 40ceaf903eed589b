package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/blockmart/blockmart-backend/pkg/enums"
)

// Giveaway is one credit-prize drawing. At most one giveaway is active
// at a time; the rotation job ends expired ones and starts the next.
type Giveaway struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MessageID *string              `gorm:"column:message_id"`
	EndsAt    time.Time            `gorm:"column:ends_at;not null"`
	Status    enums.GiveawayStatus `gorm:"column:status;not null;default:'active'"`
	WinnerID  *string              `gorm:"column:winner_id"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// GiveawayEntrant records one user's entry into one giveaway. The
// unique pair keeps entries idempotent within a giveaway while letting
// the same user enter every new one.
type GiveawayEntrant struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GiveawayID uuid.UUID `gorm:"column:giveaway_id;type:uuid;not null;uniqueIndex:idx_giveaway_entrant"`
	UserID     string    `gorm:"column:user_id;not null;uniqueIndex:idx_giveaway_entrant"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
