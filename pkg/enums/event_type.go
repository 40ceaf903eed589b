package enums

import "fmt"

// EventType labels analytics events recorded by the shop.
type EventType string

const (
	EventTypePurchase EventType = "purchase"
)

// String implements fmt.Stringer.
func (e EventType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EventType.
func (e EventType) IsValid() bool {
	return e == EventTypePurchase
}

// DateRange selects the lookback window for analytics queries.
type DateRange string

const (
	DateRangeWeek    DateRange = "week"
	DateRangeMonth   DateRange = "month"
	DateRangeYear    DateRange = "year"
	DateRangeAllTime DateRange = "all"
)

var validDateRanges = []DateRange{
	DateRangeWeek,
	DateRangeMonth,
	DateRangeYear,
	DateRangeAllTime,
}

// String implements fmt.Stringer.
func (d DateRange) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DateRange.
func (d DateRange) IsValid() bool {
	for _, candidate := range validDateRanges {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDateRange converts raw input into a DateRange, defaulting empty
// input to the all-time window.
func ParseDateRange(value string) (DateRange, error) {
	if value == "" {
		return DateRangeAllTime, nil
	}
	for _, candidate := range validDateRanges {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid date range %q", value)
}
