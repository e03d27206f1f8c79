package rental_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lending-ledger/rental"
)

func TestRentDays_RoundsUp(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2025, time.June, d, 0, 0, 0, 0, time.UTC)
	}

	cases := []struct {
		name  string
		issue time.Time
		ret   time.Time
		want  int
	}{
		{"same instant", day(1), day(1), 0},
		{"exactly one day", day(1), day(2), 1},
		{"exactly three days", day(1), day(4), 3},
		{"half a day rounds up", day(1).Add(12 * time.Hour), day(2), 1},
		{"one hour rounds up", day(1), day(1).Add(time.Hour), 1},
		{"one day and a minute", day(1), day(2).Add(time.Minute), 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, rental.RentDays(tc.issue, tc.ret))
		})
	}
}

func TestParseDate_AcceptsBothLayouts(t *testing.T) {
	got, err := rental.ParseDate("2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = rental.ParseDate("2025-06-01T15:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 1, 15, 30, 0, 0, time.UTC), got)
}

func TestParseDate_Malformed_WrapsValidation(t *testing.T) {
	for _, s := range []string{"", "June 1st 2025", "01/06/2025", "2025-13-40"} {
		_, err := rental.ParseDate(s)
		assert.ErrorIs(t, err, rental.ErrValidation, "input %q", s)
	}
}

func TestFormatDatePtr(t *testing.T) {
	assert.Nil(t, rental.FormatDatePtr(nil))

	d := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	got := rental.FormatDatePtr(&d)
	require.NotNil(t, got)
	assert.Equal(t, "2025-06-01", *got)
}
