package enums

import "fmt"

// CartStatus tracks a cart through the checkout lifecycle.
type CartStatus string

const (
	CartStatusActive             CartStatus = "active"
	CartStatusPendingPayment     CartStatus = "pending_payment"
	CartStatusPendingManualCheck CartStatus = "pending_manual_verification"
	CartStatusPaid               CartStatus = "paid"
	CartStatusCompleted          CartStatus = "completed"
	CartStatusClosed             CartStatus = "closed"
)

var validCartStatuses = []CartStatus{
	CartStatusActive,
	CartStatusPendingPayment,
	CartStatusPendingManualCheck,
	CartStatusPaid,
	CartStatusCompleted,
	CartStatusClosed,
}

// OpenCartStatuses are the states that count against the one-open-cart
// per user constraint.
var OpenCartStatuses = []CartStatus{
	CartStatusActive,
	CartStatusPendingPayment,
	CartStatusPendingManualCheck,
	CartStatusPaid,
}

// PayableCartStatuses are the states an order completion may transition
// from.
var PayableCartStatuses = []CartStatus{
	CartStatusActive,
	CartStatusPendingPayment,
	CartStatusPendingManualCheck,
}

// String implements fmt.Stringer.
func (c CartStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CartStatus.
func (c CartStatus) IsValid() bool {
	for _, candidate := range validCartStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the cart can no longer change state.
func (c CartStatus) IsTerminal() bool {
	return c == CartStatusCompleted || c == CartStatusClosed
}

// IsOpen reports whether the cart still counts as the user's open cart.
func (c CartStatus) IsOpen() bool {
	return !c.IsTerminal()
}

// ParseCartStatus converts raw input into a CartStatus.
func ParseCartStatus(value string) (CartStatus, error) {
	for _, candidate := range validCartStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart status %q", value)
}
