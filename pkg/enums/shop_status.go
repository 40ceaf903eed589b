package enums

import "fmt"

// ShopStatus gates whether checkout may begin.
type ShopStatus string

const (
	ShopStatusOpen   ShopStatus = "open"
	ShopStatusClosed ShopStatus = "closed"
)

// String implements fmt.Stringer.
func (s ShopStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShopStatus.
func (s ShopStatus) IsValid() bool {
	return s == ShopStatusOpen || s == ShopStatusClosed
}

// ParseShopStatus converts raw input into a ShopStatus.
func ParseShopStatus(value string) (ShopStatus, error) {
	status := ShopStatus(value)
	if status.IsValid() {
		return status, nil
	}
	return "", fmt.Errorf("invalid shop status %q", value)
}
