package billing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bher20/enerbill/internal/storage"
)

// Service computes consumption and cost reports for a contract. It is
// stateless: every call reads a consistent snapshot of its inputs from
// storage and performs no writes.
type Service struct {
	store storage.Storage
}

func NewService(st storage.Storage) *Service {
	return &Service{store: st}
}

// DailyConsumption is the summed energy for one calendar date.
type DailyConsumption struct {
	Date   string  `json:"date"`
	Energy float64 `json:"energy"`
}

// HourlyEnergy is one hour's energy within a daily breakdown.
type HourlyEnergy struct {
	Hour   int     `json:"hour"`
	Energy float64 `json:"energy"`
}

// DailyHourlyConsumption is a per-hour breakdown for one calendar date,
// sorted ascending by hour.
type DailyHourlyConsumption struct {
	Date              string         `json:"date"`
	HourlyConsumption []HourlyEnergy `json:"hourlyConsumption"`
}

// MonthlyConsumption is the summed energy for a calendar month.
type MonthlyConsumption struct {
	Month  string  `json:"month"`
	Energy float64 `json:"energy"`
}

// MonthlyCost carries the month's energy cost, power cost, and their total.
type MonthlyCost struct {
	Date       string  `json:"date"`
	EnergyCost float64 `json:"energyCost"`
	PowerCost  float64 `json:"powerCost"`
	TotalCost  float64 `json:"totalCost"`
}

// DayEnergy is one day's energy within a month. Energy is nil for days
// without readings.
type DayEnergy struct {
	Date   string   `json:"date"`
	Energy *float64 `json:"energy"`
}

// MonthlySummary aggregates a user's full contract set over one month.
type MonthlySummary struct {
	TotalContracts   int     `json:"totalContracts"`
	ActiveContracts  int     `json:"activeContracts"`
	TotalKwhConsumed float64 `json:"totalKwhConsumed"`
	TotalCost        float64 `json:"totalCost"`
}

// DashboardIndicators pairs the current and previous month summaries.
type DashboardIndicators struct {
	CurrentMonth  MonthlySummary `json:"currentMonth"`
	PreviousMonth MonthlySummary `json:"previousMonth"`
}

// ownedContract loads a contract and verifies it belongs to the user.
func (s *Service) ownedContract(ctx context.Context, contractID, userID uint) (*storage.Contract, error) {
	c, err := s.store.GetContract(ctx, contractID, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: contract not found", ErrNotFound)
	}
	return c, nil
}

// DailyConsumption sums the energy of all readings on one calendar date.
func (s *Service) DailyConsumption(ctx context.Context, contractID, userID uint, date string) (*DailyConsumption, error) {
	if _, err := s.ownedContract(ctx, contractID, userID); err != nil {
		return nil, err
	}
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	readings, err := s.store.ReadingsForDate(ctx, contractID, day)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("%w: no consumption data for %s", ErrNotFound, date)
	}

	energy, err := EnergySum(readings)
	if err != nil {
		return nil, err
	}
	return &DailyConsumption{Date: date, Energy: energy}, nil
}

// DailyHourlyConsumption returns one calendar date's readings per hour,
// ascending.
func (s *Service) DailyHourlyConsumption(ctx context.Context, contractID, userID uint, date string) (*DailyHourlyConsumption, error) {
	if _, err := s.ownedContract(ctx, contractID, userID); err != nil {
		return nil, err
	}
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	readings, err := s.store.ReadingsForDate(ctx, contractID, day)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("%w: no consumption data for %s", ErrNotFound, date)
	}

	hourly := make([]HourlyEnergy, 0, len(readings))
	for _, r := range readings {
		if !validEnergy(r.Energy) {
			return nil, fmt.Errorf("%w: invalid energy value in consumption data", ErrInvalidInput)
		}
		hourly = append(hourly, HourlyEnergy{Hour: r.Hour, Energy: r.Energy})
	}
	sort.Slice(hourly, func(i, j int) bool { return hourly[i].Hour < hourly[j].Hour })

	return &DailyHourlyConsumption{Date: date, HourlyConsumption: hourly}, nil
}

// MonthlyConsumption sums the energy of all readings in the reference
// date's calendar month.
func (s *Service) MonthlyConsumption(ctx context.Context, contractID, userID uint, date string) (*MonthlyConsumption, error) {
	if _, err := s.ownedContract(ctx, contractID, userID); err != nil {
		return nil, err
	}
	ref, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	start, end := MonthRange(ref)

	readings, err := s.store.ReadingsBetween(ctx, contractID, start, end)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("%w: no consumption data for %s", ErrNotFound, date)
	}

	energy, err := EnergySum(readings)
	if err != nil {
		return nil, err
	}
	return &MonthlyConsumption{Month: MonthName(start.Month()), Energy: energy}, nil
}

// MonthlyCost computes the month's consumption cost plus power cost for a
// contract with an assigned rate.
func (s *Service) MonthlyCost(ctx context.Context, contractID, userID uint, date string) (*MonthlyCost, error) {
	contract, err := s.ownedContract(ctx, contractID, userID)
	if err != nil {
		return nil, err
	}
	ref, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	start, end := MonthRange(ref)

	days := DaysBetween(start, end)
	if days < 0 {
		return nil, fmt.Errorf("%w: invalid date range", ErrInvalidInput)
	}

	readings, err := s.store.ReadingsBetween(ctx, contractID, start, end)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("%w: no consumption data for %s", ErrNotFound, date)
	}

	if contract.Rate == nil {
		return nil, fmt.Errorf("%w: contract has no rate assigned", ErrInvalidInput)
	}
	rate := *contract.Rate
	discount := firstDiscount(rate)

	energyCost, err := ConsumptionCost(readings, rate, discount)
	if err != nil {
		return nil, err
	}
	powerCost, err := PowerCost(DefaultContractedPower(), rate, days)
	if err != nil {
		return nil, err
	}

	return &MonthlyCost{
		Date:       date,
		EnergyCost: energyCost,
		PowerCost:  powerCost,
		TotalCost:  TotalCost(energyCost, powerCost),
	}, nil
}

// DaysOfMonthCost groups the month's readings by calendar date, summing
// energy per date with an incremental 3-decimal round as each reading is
// folded in, then synthesizes missing days with nil energy so the result
// has exactly one entry per day of the month, ascending.
func (s *Service) DaysOfMonthCost(ctx context.Context, contractID, userID uint, date string) ([]DayEnergy, error) {
	if _, err := s.ownedContract(ctx, contractID, userID); err != nil {
		return nil, err
	}
	ref, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	start, end := MonthRange(ref)

	days := DaysBetween(start, end)
	if days < 0 {
		return nil, fmt.Errorf("%w: invalid date range", ErrInvalidInput)
	}

	readings, err := s.store.ReadingsBetween(ctx, contractID, start, end)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("%w: no consumption data for %s", ErrNotFound, date)
	}

	byDate := make(map[string]float64)
	for _, r := range readings {
		if !validEnergy(r.Energy) {
			return nil, fmt.Errorf("%w: invalid energy value in consumption data", ErrInvalidInput)
		}
		key := r.Date.Format("2006-01-02")
		byDate[key] = Round3(byDate[key] + r.Energy)
	}

	out := make([]DayEnergy, 0, days+1)
	for offset := 0; offset <= days; offset++ {
		day := start.AddDate(0, 0, offset).Format("2006-01-02")
		if energy, ok := byDate[day]; ok {
			e := energy
			out = append(out, DayEnergy{Date: day, Energy: &e})
		} else {
			out = append(out, DayEnergy{Date: day, Energy: nil})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })

	return out, nil
}

// DashboardIndicators summarizes the user's full contract set for the
// current and previous calendar month relative to now. Unlike the strict
// reports it never returns not-found and silently skips invalid readings:
// a dashboard should degrade, not fail, on one bad meter row.
func (s *Service) DashboardIndicators(ctx context.Context, userID uint, now time.Time) (*DashboardIndicators, error) {
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	previous := current.AddDate(0, -1, 0)

	cur, err := s.monthlySummary(ctx, userID, current)
	if err != nil {
		return nil, err
	}
	prev, err := s.monthlySummary(ctx, userID, previous)
	if err != nil {
		return nil, err
	}

	return &DashboardIndicators{CurrentMonth: *cur, PreviousMonth: *prev}, nil
}

func (s *Service) monthlySummary(ctx context.Context, userID uint, ref time.Time) (*MonthlySummary, error) {
	start, end := MonthRange(ref)

	contracts, err := s.store.ListContractsByUser(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	summary := &MonthlySummary{TotalContracts: len(contracts)}
	for _, c := range contracts {
		if c.IsActive {
			summary.ActiveContracts++
		}
	}
	if summary.TotalContracts == 0 {
		return summary, nil
	}

	var totalKwh, totalCost float64
	for _, contract := range contracts {
		readings, err := s.store.ReadingsBetween(ctx, contract.ID, start, end)
		if err != nil {
			return nil, err
		}
		if len(readings) == 0 {
			continue
		}

		totalKwh += LenientEnergySum(readings)

		// Contracts without a rate contribute energy but no cost.
		if contract.Rate == nil {
			continue
		}
		rate := *contract.Rate
		discount := firstDiscount(rate)

		valid := readings[:0:0]
		for _, r := range readings {
			if validEnergy(r.Energy) {
				valid = append(valid, r)
			}
		}

		energyCost, err := ConsumptionCost(valid, rate, discount)
		if err != nil {
			return nil, err
		}
		powerCost, err := PowerCost(DefaultContractedPower(), rate, DaysBetween(start, end))
		if err != nil {
			return nil, err
		}
		totalCost += energyCost + powerCost
	}

	summary.TotalKwhConsumed = Round3(totalKwh)
	summary.TotalCost = Round2(totalCost)
	return summary, nil
}

// firstDiscount returns the first discount stored for a rate, or nil. The
// engine consumes at most one discount even when several are stored.
func firstDiscount(rate storage.Rate) *storage.Discount {
	if len(rate.Discounts) == 0 {
		return nil
	}
	d := rate.Discounts[0]
	return &d
}
