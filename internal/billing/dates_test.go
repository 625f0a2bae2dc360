package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthRange(t *testing.T) {
	ref := time.Date(2024, time.January, 15, 13, 45, 0, 0, time.Local)
	start, end := MonthRange(ref)

	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.Local), start)
	assert.Equal(t, time.Date(2024, time.January, 31, 23, 59, 59, 999_000_000, time.Local), end)
}

func TestMonthRange_February(t *testing.T) {
	start, end := MonthRange(time.Date(2024, time.February, 10, 0, 0, 0, 0, time.Local))
	assert.Equal(t, 1, start.Day())
	assert.Equal(t, 29, end.Day()) // leap year

	_, end = MonthRange(time.Date(2023, time.February, 10, 0, 0, 0, 0, time.Local))
	assert.Equal(t, 28, end.Day())
}

// A full month window spans daysInMonth-1 whole days because the trailing
// day ends one millisecond short of midnight. Downstream power cost is
// pinned to this arithmetic.
func TestDaysBetween_FullMonthQuirk(t *testing.T) {
	start, end := MonthRange(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.Local))
	assert.Equal(t, 30, DaysBetween(start, end))

	start, end = MonthRange(time.Date(2024, time.February, 1, 0, 0, 0, 0, time.Local))
	assert.Equal(t, 28, DaysBetween(start, end))
}

func TestDaysBetween_Negative(t *testing.T) {
	a := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	b := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	assert.Less(t, DaysBetween(a, b), 0)
}

func TestMonthName(t *testing.T) {
	assert.Equal(t, "January", MonthName(time.January))
	assert.Equal(t, "December", MonthName(time.December))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, time.January, d.Month())
	assert.Equal(t, 15, d.Day())

	for _, bad := range []string{"", "not-a-date", "2024-02-31", "2024-13-01", "15/01/2024"} {
		_, err := ParseDate(bad)
		require.Error(t, err, "input %q", bad)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}
