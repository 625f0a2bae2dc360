package billing

import (
	"fmt"
	"math"
	"time"
)

const msPerDay = 24 * 60 * 60 * 1000

// MonthRange returns the calendar-month window around the reference date:
// the first day of the month at 00:00:00.000 and the last day at
// 23:59:59.999, both in the reference date's location.
func MonthRange(ref time.Time) (start, end time.Time) {
	loc := ref.Location()
	start = time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc)
	// Day 0 of the next month normalizes to the last day of this month.
	end = time.Date(ref.Year(), ref.Month()+1, 0, 23, 59, 59, 999_000_000, loc)
	return start, end
}

// DaysBetween is the floor of (end - start) in whole days, computed from the
// millisecond difference. For a full MonthRange window this yields
// daysInMonth-1 because the trailing day is one millisecond short of
// complete; power cost depends on this exact arithmetic and downstream
// billing is pinned to it, so it is not "fixed" to a calendar day count.
func DaysBetween(start, end time.Time) int {
	ms := end.Sub(start).Milliseconds()
	return int(math.Floor(float64(ms) / msPerDay))
}

// MonthName returns the English month name.
func MonthName(m time.Month) string {
	return m.String()
}

// ParseDate parses a YYYY-MM-DD date string in local time. Malformed or
// impossible dates (e.g. 2024-02-31) are invalid input.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrInvalidInput, s)
	}
	return t, nil
}
