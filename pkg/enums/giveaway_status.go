package enums

import "fmt"

// GiveawayStatus tracks whether a giveaway is still accepting entries.
type GiveawayStatus string

const (
	GiveawayStatusActive GiveawayStatus = "active"
	GiveawayStatusEnded  GiveawayStatus = "ended"
)

// String implements fmt.Stringer.
func (g GiveawayStatus) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GiveawayStatus.
func (g GiveawayStatus) IsValid() bool {
	return g == GiveawayStatusActive || g == GiveawayStatusEnded
}

// ParseGiveawayStatus converts raw input into a GiveawayStatus.
func ParseGiveawayStatus(value string) (GiveawayStatus, error) {
	status := GiveawayStatus(value)
	if status.IsValid() {
		return status, nil
	}
	return "", fmt.Errorf("invalid giveaway status %q", value)
}
