package billing

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/enerbill/internal/storage"
)

const testUserID uint = 7

// seedContract creates a rate (with an optional discount percentage) and an
// active contract owned by testUserID.
func seedContract(t *testing.T, st *storage.MemoryStorage, discountPct float64) *storage.Contract {
	t.Helper()
	ctx := context.Background()

	rate, err := st.CreateRate(ctx, storage.Rate{
		Name:                "2.0TD",
		PeakEnergyPrice:     0.3,
		StandardEnergyPrice: 0.2,
		OffPeakEnergyPrice:  0.1,
		PeakPowerPrice:      ptr(0.4),
		StandardPowerPrice:  ptr(0.2),
		StartDate:           time.Date(2023, 1, 1, 0, 0, 0, 0, time.Local),
	})
	require.NoError(t, err)

	if discountPct > 0 {
		_, err = st.CreateDiscount(ctx, storage.Discount{
			Percentage: discountPct,
			RateID:     rate.ID,
			StartDate:  rate.StartDate,
		})
		require.NoError(t, err)
	}

	contract, err := st.CreateContract(ctx, storage.Contract{
		ContractNumber: "C-001",
		SupplierName:   "Acme Energy",
		StartDate:      rate.StartDate,
		IsActive:       true,
		UserID:         testUserID,
		RateID:         &rate.ID,
	})
	require.NoError(t, err)
	return contract
}

func addReading(t *testing.T, st *storage.MemoryStorage, contractID uint, date string, hour int, energy float64) {
	t.Helper()
	day, err := ParseDate(date)
	require.NoError(t, err)
	_, err = st.CreateReading(context.Background(), storage.Reading{
		Date:       day,
		Hour:       hour,
		Energy:     energy,
		ContractID: contractID,
	})
	require.NoError(t, err)
}

func TestDailyConsumption(t *testing.T) {
	st := storage.NewMemory()
	c := seedContract(t, st, 0)
	svc := NewService(st)

	addReading(t, st, c.ID, "2024-01-15", 3, 1.1111)
	addReading(t, st, c.ID, "2024-01-15", 12, 2.2222)
	addReading(t, st, c.ID, "2024-01-16", 3, 9.0) // other day, excluded

	got, err := svc.DailyConsumption(context.Background(), c.ID, testUserID, "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", got.Date)
	assert.InDelta(t, 3.333, got.Energy, 1e-9)
}

func TestDailyConsumption_NotFound(t *testing.T) {
	st := storage.NewMemory()
	c := seedContract(t, st, 0)
	svc := NewService(st)

	_, err := svc.DailyConsumption(context.Background(), c.ID, testUserID, "2024-01-15")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDailyConsumption_WrongOwner(t *testing.T) {
	st := storage.NewMemory()
	c := seedContract(t, st, 0)
	svc := NewService(st)

	addReading(t, st, c.ID, "2024-01-15", 3, 1.0)

	_, err := svc.DailyConsumption(context.Background(), c.ID, testUserID+1, "2024-01-15")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDailyHourlyConsumption_SortedAscending(t *testing.T) {
	st := storage.NewMemory()
	c := seedContract(t, st, 0)
	svc := NewService(st)

	addReading(t, st, c.ID, "2024-01-15", 12, 2.0)
	addReading(t, st, c.ID, "2024-01-15", 3, 1.0)
	addReading(t, st, c.ID, "2024-01-15", 22, 3.0)

	got, err := svc.DailyHourlyConsumption(context.Background(), c.ID, testUserID, "2024-01-15")
	require.NoError(t, err)
	require.Len(t, got.HourlyConsumption, 3)
	assert.Equal(t, 3, got.HourlyConsumption[0].Hour)
	assert.Equal(t, 12, got.HourlyConsumption[1].Hour)
	assert.Equal(t, 22, got.HourlyConsumption[2].Hour)
}

func TestMonthlyConsumption(t *testing.T) {
	st := storage.NewMemory()
	c := seedContract(t, st, 0)
	svc := NewService(st)

	addReading(t, st, c.ID, "2024-01-02", 3, 1.5)
	addReading(t, st, c.ID, "2024-01-30", 12, 2.5)
	addReading(t, st, c.ID, "2024-02-01", 3, 9.0) // next month, excluded

	got, err := svc.MonthlyConsumption(context.Background(), c.ID, testUserID, "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, "January", got.Month)
	assert.InDelta(t, 4.0, got.Energy, 1e-9)
}

func TestMonthlyConsumption_BadDate(t *testing.T) {
	st := storage.NewMemory()
	c := seedContract(t, st, 0)
	svc := NewService(st)

	_, err := svc.MonthlyConsumption(context.Background(), c.ID, testUserID, "garbage")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMonthlyCost(t *testing.T) {
	st := storage.NewMemory()
	c := seedContract(t, st, 0)
	svc := NewService(st)

	// 10 kWh peak at 0.3 = 3.00 energy cost.
	addReading(t, st, c.ID, "2024-01-15", 12, 10.0)

	got, err := svc.MonthlyCost(context.Background(), c.ID, testUserID, "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", got.Date)
	assert.InDelta(t, 3.0, got.EnergyCost, 1e-9)
	// 30 billed days (January's window spans 30 whole days):
	// 3.2*0.4*30 + 3.2*0.2*30 = 57.6
	assert.InDelta(t, 57.6, got.PowerCost, 1e-9)
	assert.InDelta(t, 60.6, got.TotalCost, 1e-9)
}

func TestMonthlyCost_DiscountApplies(t *testing.T) {
	st := storage.NewMemory()
	c := seedContract(t, st, 10)
	svc := NewService(st)

	addReading(t, st, c.ID, "2024-01-15", 12, 10.0)

	got, err := svc.MonthlyCost(context.Background(), c.ID, testUserID, "2024-01-15")
	require.NoError(t, err)
	// 3.00 base energy cost reduced by 10%.
	assert.InDelta(t, 2.7, got.EnergyCost, 1e-9)
	assert.InDelta(t, 57.6, got.PowerCost, 1e-9)
	assert.InDelta(t, 60.3, got.TotalCost, 1e-9)
}

func TestDaysOfMonthCost_GapFilling(t *testing.T) {
	st := storage.NewMemory()
	c := seedContract(t, st, 0)
	svc := NewService(st)

	addReading(t, st, c.ID, "2024-01-05", 1, 1.1111)
	addReading(t, st, c.ID, "2024-01-05", 2, 2.0)
	addReading(t, st, c.ID, "2024-01-20", 12, 3.5)

	got, err := svc.DaysOfMonthCost(context.Background(), c.ID, testUserID, "2024-01-15")
	require.NoError(t, err)

	// One entry per day of January, ascending.
	require.Len(t, got, 31)
	assert.Equal(t, "2024-01-01", got[0].Date)
	assert.Equal(t, "2024-01-31", got[30].Date)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Date, got[i].Date)
	}

	withEnergy := 0
	for _, d := range got {
		switch d.Date {
		case "2024-01-05":
			require.NotNil(t, d.Energy)
			assert.InDelta(t, 3.111, *d.Energy, 1e-9)
			withEnergy++
		case "2024-01-20":
			require.NotNil(t, d.Energy)
			assert.InDelta(t, 3.5, *d.Energy, 1e-9)
			withEnergy++
		default:
			assert.Nil(t, d.Energy, "day %s", d.Date)
		}
	}
	assert.Equal(t, 2, withEnergy)
}

func TestDaysOfMonthCost_NotFound(t *testing.T) {
	st := storage.NewMemory()
	c := seedContract(t, st, 0)
	svc := NewService(st)

	_, err := svc.DaysOfMonthCost(context.Background(), c.ID, testUserID, "2024-01-15")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDashboardIndicators_ZeroContracts(t *testing.T) {
	st := storage.NewMemory()
	svc := NewService(st)

	got, err := svc.DashboardIndicators(context.Background(), testUserID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, MonthlySummary{}, got.CurrentMonth)
	assert.Equal(t, MonthlySummary{}, got.PreviousMonth)
}

func TestDashboardIndicators(t *testing.T) {
	st := storage.NewMemory()
	c := seedContract(t, st, 0)
	svc := NewService(st)

	now := time.Date(2024, time.January, 20, 10, 0, 0, 0, time.Local)
	addReading(t, st, c.ID, "2024-01-15", 12, 10.0) // current month
	addReading(t, st, c.ID, "2023-12-10", 3, 4.0)   // previous month

	got, err := svc.DashboardIndicators(context.Background(), testUserID, now)
	require.NoError(t, err)

	assert.Equal(t, 1, got.CurrentMonth.TotalContracts)
	assert.Equal(t, 1, got.CurrentMonth.ActiveContracts)
	assert.InDelta(t, 10.0, got.CurrentMonth.TotalKwhConsumed, 1e-9)
	// January: 3.00 energy + 57.6 power.
	assert.InDelta(t, 60.6, got.CurrentMonth.TotalCost, 1e-9)

	assert.InDelta(t, 4.0, got.PreviousMonth.TotalKwhConsumed, 1e-9)
	// December: 0.4 energy + 3.2*(0.4+0.2)*30 power = 58.0
	assert.InDelta(t, 58.0, got.PreviousMonth.TotalCost, 1e-9)
}

func TestDashboardIndicators_SkipsInvalidReadings(t *testing.T) {
	st := storage.NewMemory()
	c := seedContract(t, st, 0)
	svc := NewService(st)

	now := time.Date(2024, time.January, 20, 10, 0, 0, 0, time.Local)
	addReading(t, st, c.ID, "2024-01-15", 12, 10.0)
	addReading(t, st, c.ID, "2024-01-15", 13, math.NaN())

	got, err := svc.DashboardIndicators(context.Background(), testUserID, now)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, got.CurrentMonth.TotalKwhConsumed, 1e-9)
	assert.InDelta(t, 60.6, got.CurrentMonth.TotalCost, 1e-9)

	// The same malformed reading is fatal on the strict paths.
	_, err = svc.DailyConsumption(context.Background(), c.ID, testUserID, "2024-01-15")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDashboardIndicators_ContractWithoutRate(t *testing.T) {
	st := storage.NewMemory()
	svc := NewService(st)

	contract, err := st.CreateContract(context.Background(), storage.Contract{
		ContractNumber: "C-002",
		SupplierName:   "Acme Energy",
		IsActive:       true,
		UserID:         testUserID,
	})
	require.NoError(t, err)

	now := time.Date(2024, time.January, 20, 10, 0, 0, 0, time.Local)
	addReading(t, st, contract.ID, "2024-01-15", 12, 5.0)

	got, err := svc.DashboardIndicators(context.Background(), testUserID, now)
	require.NoError(t, err)
	// Energy contributes, cost does not.
	assert.InDelta(t, 5.0, got.CurrentMonth.TotalKwhConsumed, 1e-9)
	assert.Equal(t, 0.0, got.CurrentMonth.TotalCost)
}

func TestReports_Idempotent(t *testing.T) {
	st := storage.NewMemory()
	c := seedContract(t, st, 0)
	svc := NewService(st)

	addReading(t, st, c.ID, "2024-01-15", 12, 10.0)

	first, err := svc.MonthlyCost(context.Background(), c.ID, testUserID, "2024-01-15")
	require.NoError(t, err)
	second, err := svc.MonthlyCost(context.Background(), c.ID, testUserID, "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
