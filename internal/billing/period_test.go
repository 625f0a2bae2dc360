package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodForHour_FullDay(t *testing.T) {
	want := map[int]Period{
		0: PeriodOffPeak, 1: PeriodOffPeak, 2: PeriodOffPeak, 3: PeriodOffPeak,
		4: PeriodOffPeak, 5: PeriodOffPeak, 6: PeriodOffPeak, 7: PeriodOffPeak,
		8: PeriodStandard, 9: PeriodStandard,
		10: PeriodPeak, 11: PeriodPeak, 12: PeriodPeak, 13: PeriodPeak,
		14: PeriodStandard, 15: PeriodStandard,
		16: PeriodPeak, 17: PeriodPeak, 18: PeriodPeak, 19: PeriodPeak,
		20: PeriodPeak, 21: PeriodPeak,
		22: PeriodStandard, 23: PeriodStandard,
	}
	for hour := 0; hour < 24; hour++ {
		got, err := PeriodForHour(hour)
		require.NoError(t, err, "hour %d", hour)
		assert.Equal(t, want[hour], got, "hour %d", hour)
	}
}

func TestPeriodForHour_OutOfRange(t *testing.T) {
	for _, hour := range []int{-1, 24, 100} {
		_, err := PeriodForHour(hour)
		require.Error(t, err, "hour %d", hour)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestPeriodTable_PartitionsDay(t *testing.T) {
	// Every hour must land in exactly one period range.
	for hour := 0; hour < 24; hour++ {
		matches := 0
		for _, p := range periodTable {
			for _, r := range p.Ranges {
				if hourInRange(hour, r) {
					matches++
				}
			}
		}
		assert.Equal(t, 1, matches, "hour %d", hour)
	}
}

func TestHourInRange_EndZeroWraps(t *testing.T) {
	r := hourRange{Start: 22, End: 0}
	assert.False(t, hourInRange(21, r))
	assert.True(t, hourInRange(22, r))
	assert.True(t, hourInRange(23, r))
}
