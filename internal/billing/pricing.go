package billing

import (
	"fmt"

	"github.com/bher20/enerbill/internal/storage"
)

// PeriodPrice returns the energy price (currency/kWh) for a period under
// the given rate. An unknown period is an error, never a default price.
func PeriodPrice(period Period, rate storage.Rate) (float64, error) {
	switch period {
	case PeriodPeak:
		return rate.PeakEnergyPrice, nil
	case PeriodStandard:
		return rate.StandardEnergyPrice, nil
	case PeriodOffPeak:
		return rate.OffPeakEnergyPrice, nil
	default:
		return 0, fmt.Errorf("%w: unknown period: %s", ErrInvalidInput, period)
	}
}

// PeriodPowerPrice returns the power price (currency/kW/day) for a period
// under the given rate. Unset power prices default to 0.
func PeriodPowerPrice(period Period, rate storage.Rate) (float64, error) {
	var p *float64
	switch period {
	case PeriodPeak:
		p = rate.PeakPowerPrice
	case PeriodStandard:
		p = rate.StandardPowerPrice
	case PeriodOffPeak:
		p = rate.OffPeakPowerPrice
	default:
		return 0, fmt.Errorf("%w: unknown period: %s", ErrInvalidInput, period)
	}
	if p == nil {
		return 0, nil
	}
	return *p, nil
}
