package rental

import (
	"fmt"
	"math"
	"time"
)

// =============================================================================
// DATE HANDLING - Day-granularity dates on the wire
// =============================================================================

// DateLayout is the canonical wire format for dates.
const DateLayout = "2006-01-02"

// ParseDate parses a date string. Accepts YYYY-MM-DD or RFC3339.
// A failure wraps ErrValidation so callers can classify it.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q (use YYYY-MM-DD)", ErrValidation, s)
	}
	return t.UTC(), nil
}

// RentDays returns the number of chargeable days between issue and return:
// the elapsed time in days, rounded up. Same-day returns yield 0.
func RentDays(issue, ret time.Time) int {
	hours := ret.Sub(issue).Hours()
	return int(math.Ceil(hours / 24))
}

// FormatDate renders a time in the canonical wire format.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// FormatDatePtr renders an optional time, nil-preserving.
func FormatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}
