package billing

import "fmt"

// Period is a time-of-day pricing bucket.
type Period string

const (
	PeriodPeak     Period = "peak"
	PeriodStandard Period = "standard"
	PeriodOffPeak  Period = "offPeak"
)

// hourRange is a half-open range [Start, End) of hours. End == 0 means the
// range extends through the end of the day (hour 24).
type hourRange struct {
	Start int
	End   int
}

// periodTable is the fixed mapping of period to hour ranges. The ranges
// must partition the 24-hour day; init verifies this.
var periodTable = []struct {
	Name   Period
	Ranges []hourRange
}{
	{PeriodPeak, []hourRange{{10, 14}, {16, 22}}},
	{PeriodStandard, []hourRange{{8, 10}, {14, 16}, {22, 0}}},
	{PeriodOffPeak, []hourRange{{0, 8}}},
}

func init() {
	for hour := 0; hour < 24; hour++ {
		matches := 0
		for _, p := range periodTable {
			for _, r := range p.Ranges {
				if hourInRange(hour, r) {
					matches++
				}
			}
		}
		if matches != 1 {
			panic(fmt.Sprintf("billing: period table does not partition hour %d (%d matches)", hour, matches))
		}
	}
}

func hourInRange(hour int, r hourRange) bool {
	if r.End == 0 {
		return hour >= r.Start
	}
	return hour >= r.Start && hour < r.End
}

// PeriodForHour maps an hour of day (0-23) to its time-of-use period.
// An hour outside the configured partition is an error: defaulting to a
// period would mis-price energy.
func PeriodForHour(hour int) (Period, error) {
	if hour < 0 || hour > 23 {
		return "", fmt.Errorf("%w: hour %d out of range", ErrInvalidInput, hour)
	}
	for _, p := range periodTable {
		for _, r := range p.Ranges {
			if hourInRange(hour, r) {
				return p.Name, nil
			}
		}
	}
	return "", fmt.Errorf("%w: invalid period for hour %d", ErrInvalidInput, hour)
}
