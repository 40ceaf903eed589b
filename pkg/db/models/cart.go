package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/blockmart/blockmart-backend/pkg/db/types"
	"github.com/blockmart/blockmart-backend/pkg/enums"
)

// Cart is a user's basket plus its checkout state. Lines hold the
// price/name snapshot taken at add time. PaymentRef is the hosted
// processor's order ID while an invoice is outstanding; it is cleared
// whenever the invoice is cancelled, so an active cart never carries
// payment state.
type Cart struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           string               `gorm:"column:user_id;not null;index"`
	ChannelID        *string              `gorm:"column:channel_id"`
	MessageID        *string              `gorm:"column:message_id"`
	Lines            dbtypes.CartLines    `gorm:"column:lines;type:jsonb;not null;default:'{}'"`
	InvoiceMessageID *string              `gorm:"column:invoice_message_id"`
	PaymentRef       *string              `gorm:"column:payment_ref"`
	PaymentMethod    *enums.PaymentMethod `gorm:"column:payment_method"`
	CreditApplied    decimal.Decimal      `gorm:"column:credit_applied;type:numeric(10,2);not null;default:0"`
	DeliveryLocation *string              `gorm:"column:delivery_location"`
	LastActivityAt   time.Time            `gorm:"column:last_activity_at;not null;autoCreateTime"`
	Status           enums.CartStatus     `gorm:"column:status;not null;default:'active'"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// Total is the snapshot value of every line before credit.
func (c Cart) Total() decimal.Decimal {
	return c.Lines.Total()
}

// Outstanding is the amount still owed after applied credit.
func (c Cart) Outstanding() decimal.Decimal {
	return c.Total().Sub(c.CreditApplied)
}

// HasInvoice reports whether a payment attempt is outstanding.
func (c Cart) HasInvoice() bool {
	return c.PaymentRef != nil || c.PaymentMethod != nil || c.InvoiceMessageID != nil
}
