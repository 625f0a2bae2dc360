package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func TestReplaceReadings(t *testing.T) {
	st := NewMemory()
	ctx := t.Context()

	c, err := st.CreateContract(ctx, Contract{ContractNumber: "C-1", UserID: 1})
	require.NoError(t, err)

	_, err = st.ReplaceReadings(ctx, c.ID, []Reading{
		{Date: day(2024, time.January, 15), Hour: 3, Energy: 1.0},
		{Date: day(2024, time.January, 15), Hour: 12, Energy: 2.0},
	})
	require.NoError(t, err)

	// Replacing one hour must not duplicate it and must keep the other.
	_, err = st.ReplaceReadings(ctx, c.ID, []Reading{
		{Date: day(2024, time.January, 15), Hour: 12, Energy: 5.0},
	})
	require.NoError(t, err)

	got, err := st.ReadingsForDate(ctx, c.ID, day(2024, time.January, 15))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].Energy)
	assert.Equal(t, 5.0, got[1].Energy)
}

func TestReplaceReadingsScopedToContract(t *testing.T) {
	st := NewMemory()
	ctx := t.Context()

	a, err := st.CreateContract(ctx, Contract{ContractNumber: "C-A", UserID: 1})
	require.NoError(t, err)
	b, err := st.CreateContract(ctx, Contract{ContractNumber: "C-B", UserID: 1})
	require.NoError(t, err)

	_, err = st.ReplaceReadings(ctx, a.ID, []Reading{{Date: day(2024, time.March, 1), Hour: 7, Energy: 1.5}})
	require.NoError(t, err)
	_, err = st.ReplaceReadings(ctx, b.ID, []Reading{{Date: day(2024, time.March, 1), Hour: 7, Energy: 9.9}})
	require.NoError(t, err)

	got, err := st.ReadingsForDate(ctx, a.ID, day(2024, time.March, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.5, got[0].Energy)
}

func TestReadingsBetweenSorted(t *testing.T) {
	st := NewMemory()
	ctx := t.Context()

	c, err := st.CreateContract(ctx, Contract{ContractNumber: "C-1", UserID: 1})
	require.NoError(t, err)

	for _, r := range []Reading{
		{Date: day(2024, time.January, 20), Hour: 5, Energy: 1},
		{Date: day(2024, time.January, 10), Hour: 23, Energy: 2},
		{Date: day(2024, time.January, 10), Hour: 0, Energy: 3},
	} {
		r.ContractID = c.ID
		_, err := st.CreateReading(ctx, r)
		require.NoError(t, err)
	}

	got, err := st.ReadingsBetween(ctx, c.ID, day(2024, time.January, 1), day(2024, time.January, 31))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 0, got[0].Hour)
	assert.Equal(t, 23, got[1].Hour)
	assert.Equal(t, day(2024, time.January, 20), got[2].Date)
}

func TestContractOwnership(t *testing.T) {
	st := NewMemory()
	ctx := t.Context()

	c, err := st.CreateContract(ctx, Contract{ContractNumber: "C-1", UserID: 1, IsActive: true})
	require.NoError(t, err)

	got, err := st.GetContract(ctx, c.ID, 2)
	require.NoError(t, err)
	assert.Nil(t, got, "foreign contract must be invisible")

	got, err = st.GetContract(ctx, c.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestListContractsActiveFilter(t *testing.T) {
	st := NewMemory()
	ctx := t.Context()

	_, err := st.CreateContract(ctx, Contract{ContractNumber: "C-1", UserID: 1, IsActive: true})
	require.NoError(t, err)
	_, err = st.CreateContract(ctx, Contract{ContractNumber: "C-2", UserID: 1, IsActive: false})
	require.NoError(t, err)

	all, err := st.ListContractsByUser(ctx, 1, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := st.ListContractsByUser(ctx, 1, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "C-1", active[0].ContractNumber)
}

func TestContractLoadsRateAndDiscounts(t *testing.T) {
	st := NewMemory()
	ctx := t.Context()

	rate, err := st.CreateRate(ctx, Rate{Name: "TOU", PeakEnergyPrice: 0.3, StandardEnergyPrice: 0.2, OffPeakEnergyPrice: 0.1, StartDate: day(2024, time.January, 1)})
	require.NoError(t, err)
	_, err = st.CreateDiscount(ctx, Discount{Percentage: 10, RateID: rate.ID, StartDate: day(2024, time.January, 1)})
	require.NoError(t, err)

	c, err := st.CreateContract(ctx, Contract{ContractNumber: "C-1", UserID: 1, RateID: &rate.ID})
	require.NoError(t, err)

	got, err := st.GetContract(ctx, c.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, got.Rate)
	require.Len(t, got.Rate.Discounts, 1)
	assert.Equal(t, 10.0, got.Rate.Discounts[0].Percentage)
}

func TestBillSnapshotRoundTrip(t *testing.T) {
	st := NewMemory()
	ctx := t.Context()

	require.NoError(t, st.SaveBillSnapshot(ctx, BillSnapshot{ContractID: 3, Month: "2024-01", Payload: []byte(`{"totalCost":60.6}`)}))

	snap, err := st.GetBillSnapshot(ctx, 3, "2024-01")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.False(t, snap.ComputedAt.IsZero())

	missing, err := st.GetBillSnapshot(ctx, 3, "2024-02")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Same month, different contract.
	other, err := st.GetBillSnapshot(ctx, 4, "2024-01")
	require.NoError(t, err)
	assert.Nil(t, other)
}
