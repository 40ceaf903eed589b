package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/blockmart/blockmart-backend/pkg/enums"
)

var centsPerDollar = decimal.NewFromInt(100)

// OrderState is the processor-neutral view of a hosted checkout.
type OrderState string

const (
	// OrderStatePending means the buyer has not finished the hosted flow.
	OrderStatePending OrderState = "pending"
	// OrderStateApproved means the buyer paid but funds await capture.
	OrderStateApproved OrderState = "approved"
	// OrderStateCompleted means funds are settled.
	OrderStateCompleted OrderState = "completed"
	// OrderStateFailed means the checkout is void and will never settle.
	OrderStateFailed OrderState = "failed"
)

// Checkout is a freshly created hosted payment page.
type Checkout struct {
	// Ref is the processor reference stored on the cart and used for
	// every later lookup, capture, and cancel.
	Ref string
	URL string
}

// Order is the processor-neutral status readout for a checkout.
type Order struct {
	Ref   string
	State OrderState
}

// CheckoutParams carries everything a processor needs to open a
// hosted payment page.
type CheckoutParams struct {
	ReferenceID string
	Amount      decimal.Decimal
	Description string
	ReturnURL   string
	CancelURL   string
}

// Processor is one hosted payment backend. Exactly one processor is
// live at a time, selected by config.
type Processor interface {
	Method() enums.PaymentMethod
	CreateCheckout(ctx context.Context, params CheckoutParams) (*Checkout, error)
	GetOrder(ctx context.Context, ref string) (*Order, error)
	// Capture settles an approved checkout. Processors whose hosted
	// flow settles on its own verify completion instead.
	Capture(ctx context.Context, ref string) (*Order, error)
	// CancelCheckout voids the hosted page so a stale link cannot be
	// paid. Processors without voidable links treat this as a no-op.
	CancelCheckout(ctx context.Context, ref string) error
}
