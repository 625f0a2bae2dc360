package billing

import (
	"fmt"
	"math"

	"github.com/bher20/enerbill/internal/storage"
)

// DefaultContractedPowerKW is the subscribed capacity assumed per period
// when a contract does not supply its own. Business assumption, not derived.
const DefaultContractedPowerKW = 3.2

// ContractedPower is the subscribed capacity (kW) per period.
type ContractedPower struct {
	Peak     float64 `json:"peak"`
	Standard float64 `json:"standard"`
	OffPeak  float64 `json:"offPeak"`
}

// DefaultContractedPower returns the default capacity per period.
func DefaultContractedPower() ContractedPower {
	return ContractedPower{
		Peak:     DefaultContractedPowerKW,
		Standard: DefaultContractedPowerKW,
		OffPeak:  DefaultContractedPowerKW,
	}
}

// Round2 rounds a money figure to 2 decimals. Round3 rounds an energy
// aggregate to 3 decimals. Every money figure is rounded independently at
// its own computation point; totals are sums of already-rounded parts.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }

func Round3(v float64) float64 { return math.Round(v*1000) / 1000 }

// validEnergy reports whether e is a usable energy value: finite and
// non-negative.
func validEnergy(e float64) bool {
	return !math.IsNaN(e) && !math.IsInf(e, 0) && e >= 0
}

// EnergySum sums energy across readings, validating each one first. Any
// invalid reading aborts the whole sum. Result is rounded to 3 decimals.
func EnergySum(readings []storage.Reading) (float64, error) {
	var sum float64
	for _, r := range readings {
		if !validEnergy(r.Energy) {
			return 0, fmt.Errorf("%w: invalid energy value in consumption data", ErrInvalidInput)
		}
		sum += r.Energy
	}
	return Round3(sum), nil
}

// LenientEnergySum sums energy skipping invalid readings instead of
// failing. Only the dashboard indicators use this policy; every
// consumer-facing aggregate stays fail-fast.
func LenientEnergySum(readings []storage.Reading) float64 {
	var sum float64
	for _, r := range readings {
		if !validEnergy(r.Energy) {
			continue
		}
		sum += r.Energy
	}
	return sum
}

// ConsumptionCost prices each reading under its time-of-use period,
// applies the discount if present, and returns the sum rounded to 2
// decimals. An invalid energy value on any reading aborts the batch.
func ConsumptionCost(readings []storage.Reading, rate storage.Rate, discount *storage.Discount) (float64, error) {
	var sum float64
	for _, r := range readings {
		cost, err := readingCost(r, rate, discount)
		if err != nil {
			return 0, err
		}
		sum += cost
	}
	return Round2(sum), nil
}

// readingCost is the discounted cost of a single reading: energy times the
// period price, reduced by the discount percentage when one applies. The
// discount reduces energy cost only, uniformly regardless of hour.
func readingCost(r storage.Reading, rate storage.Rate, discount *storage.Discount) (float64, error) {
	if !validEnergy(r.Energy) {
		return 0, fmt.Errorf("%w: invalid energy value in consumption data", ErrInvalidInput)
	}

	period, err := PeriodForHour(r.Hour)
	if err != nil {
		return 0, err
	}

	price, err := PeriodPrice(period, rate)
	if err != nil {
		return 0, err
	}

	baseCost := r.Energy * price
	if discount == nil {
		return baseCost, nil
	}
	return baseCost - baseCost*discount.Percentage/100, nil
}

// PowerCost is the capacity charge: for each period, contracted kW times
// the period's power price times the billed day count, summed and rounded
// to 2 decimals.
func PowerCost(power ContractedPower, rate storage.Rate, days int) (float64, error) {
	peakPrice, err := PeriodPowerPrice(PeriodPeak, rate)
	if err != nil {
		return 0, err
	}
	standardPrice, err := PeriodPowerPrice(PeriodStandard, rate)
	if err != nil {
		return 0, err
	}
	offPeakPrice, err := PeriodPowerPrice(PeriodOffPeak, rate)
	if err != nil {
		return 0, err
	}

	peak := power.Peak * peakPrice * float64(days)
	standard := power.Standard * standardPrice * float64(days)
	offPeak := power.OffPeak * offPeakPrice * float64(days)

	if math.IsNaN(peak) || math.IsNaN(standard) || math.IsNaN(offPeak) {
		return 0, fmt.Errorf("%w: invalid power cost values", ErrInvalidInput)
	}

	return Round2(peak + standard + offPeak), nil
}

// TotalCost sums the already-rounded energy and power costs and rounds the
// result to 2 decimals. The ordering matters at the penny level: inputs
// are rounded sub-costs, not raw sums.
func TotalCost(energyCost, powerCost float64) float64 {
	return Round2(energyCost + powerCost)
}
