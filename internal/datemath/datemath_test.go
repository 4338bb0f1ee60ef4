package datemath_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demandline/internal/datemath"
)

func TestAddMonthsClampsToMonthEnd(t *testing.T) {
	jan31 := datemath.Date(2025, time.January, 31)
	assert.Equal(t, datemath.Date(2025, time.February, 28), datemath.AddMonths(jan31, 1))

	jan31leap := datemath.Date(2024, time.January, 31)
	assert.Equal(t, datemath.Date(2024, time.February, 29), datemath.AddMonths(jan31leap, 1))

	oct31 := datemath.Date(2025, time.October, 31)
	assert.Equal(t, datemath.Date(2025, time.November, 30), datemath.AddMonths(oct31, 1))
}

func TestAddMonthsTwelveIsOneYear(t *testing.T) {
	for _, s := range []string{"2025-01-01", "2025-06-15", "2024-02-29"} {
		d, err := datemath.Parse(s)
		require.NoError(t, err)
		got := datemath.AddMonths(d, 12)
		assert.Equal(t, d.Year()+1, got.Year(), "start %s", s)
		assert.Equal(t, d.Month(), got.Month(), "start %s", s)
	}
	// Feb 29 + 12 months lands on Feb 28 of the non-leap year.
	feb29 := datemath.Date(2024, time.February, 29)
	assert.Equal(t, datemath.Date(2025, time.February, 28), datemath.AddMonths(feb29, 12))
}

func TestAddMonthsCrossesYearBoundary(t *testing.T) {
	nov := datemath.Date(2025, time.November, 15)
	assert.Equal(t, datemath.Date(2026, time.February, 15), datemath.AddMonths(nov, 3))

	jan := datemath.Date(2025, time.January, 10)
	assert.Equal(t, datemath.Date(2024, time.November, 10), datemath.AddMonths(jan, -2))
}

func TestEndDate(t *testing.T) {
	start := datemath.Date(2025, time.January, 1)
	assert.Equal(t, datemath.Date(2025, time.July, 1), datemath.EndDate(start, 6))
}

func TestDaysBetweenIsInclusive(t *testing.T) {
	a := datemath.Date(2025, time.January, 1)
	assert.Equal(t, 1, datemath.DaysBetween(a, a))
	assert.Equal(t, 31, datemath.DaysBetween(a, datemath.Date(2025, time.January, 31)))
	assert.Equal(t, 365, datemath.DaysBetween(a, datemath.Date(2025, time.December, 31)))
}

func TestDaysFromIsExclusive(t *testing.T) {
	a := datemath.Date(2025, time.January, 1)
	assert.Equal(t, 0, datemath.DaysFrom(a, a))
	assert.Equal(t, 30, datemath.DaysFrom(a, datemath.Date(2025, time.January, 31)))
}

func TestParseFormatRoundTrip(t *testing.T) {
	d, err := datemath.Parse("2025-03-09")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-09", datemath.Format(d))

	_, err = datemath.Parse("09/03/2025")
	assert.Error(t, err)
}
