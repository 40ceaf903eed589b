package enums

import "fmt"

// TicketStatus tracks a support ticket's lifecycle.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

// String implements fmt.Stringer.
func (t TicketStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TicketStatus.
func (t TicketStatus) IsValid() bool {
	return t == TicketStatusOpen || t == TicketStatusClosed
}

// ParseTicketStatus converts raw input into a TicketStatus.
func ParseTicketStatus(value string) (TicketStatus, error) {
	status := TicketStatus(value)
	if status.IsValid() {
		return status, nil
	}
	return "", fmt.Errorf("invalid ticket status %q", value)
}
