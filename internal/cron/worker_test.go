package cron

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/enerbill/internal/billing"
	"github.com/bher20/enerbill/internal/storage"
)

func TestSnapshotAll(t *testing.T) {
	st := storage.NewMemory()
	ctx := t.Context()
	svc := billing.NewService(st)

	rate, err := st.CreateRate(ctx, storage.Rate{
		Name:                "TOU",
		PeakEnergyPrice:     0.3,
		StandardEnergyPrice: 0.2,
		OffPeakEnergyPrice:  0.1,
		StartDate:           time.Date(2024, time.January, 1, 0, 0, 0, 0, time.Local),
	})
	require.NoError(t, err)

	c, err := st.CreateContract(ctx, storage.Contract{
		ContractNumber: "C-1",
		UserID:         7,
		RateID:         &rate.ID,
		IsActive:       true,
	})
	require.NoError(t, err)

	require.NoError(t, st.CreateUser(ctx, storage.User{ID: "u1", Username: "alice", AccountID: 7}))

	_, err = st.ReplaceReadings(ctx, c.ID, []storage.Reading{
		{Date: time.Date(2024, time.January, 15, 0, 0, 0, 0, time.Local), Hour: 12, Energy: 10.0},
	})
	require.NoError(t, err)

	ref := time.Date(2024, time.January, 20, 9, 0, 0, 0, time.Local)
	require.NoError(t, SnapshotAll(ctx, st, svc, nil, ref))

	snap, err := st.GetBillSnapshot(ctx, c.ID, "2024-01")
	require.NoError(t, err)
	require.NotNil(t, snap)

	var cost billing.MonthlyCost
	require.NoError(t, json.Unmarshal(snap.Payload, &cost))
	assert.Equal(t, 3.0, cost.EnergyCost)
	assert.Equal(t, cost.TotalCost, cost.EnergyCost+cost.PowerCost)
}

func TestSnapshotAllSkipsUnratedContracts(t *testing.T) {
	st := storage.NewMemory()
	ctx := t.Context()
	svc := billing.NewService(st)

	c, err := st.CreateContract(ctx, storage.Contract{ContractNumber: "C-1", UserID: 7, IsActive: true})
	require.NoError(t, err)
	require.NoError(t, st.CreateUser(ctx, storage.User{ID: "u1", Username: "alice", AccountID: 7}))

	ref := time.Date(2024, time.January, 20, 0, 0, 0, 0, time.Local)
	err = SnapshotAll(ctx, st, svc, nil, ref)
	require.Error(t, err, "an unpriceable contract surfaces after the run")

	snap, serr := st.GetBillSnapshot(ctx, c.ID, "2024-01")
	require.NoError(t, serr)
	assert.Nil(t, snap)
}

func TestSnapshotAllSkipsIdleContracts(t *testing.T) {
	st := storage.NewMemory()
	ctx := t.Context()
	svc := billing.NewService(st)

	rate, err := st.CreateRate(ctx, storage.Rate{
		Name:                "TOU",
		PeakEnergyPrice:     0.3,
		StandardEnergyPrice: 0.2,
		OffPeakEnergyPrice:  0.1,
		StartDate:           time.Date(2024, time.January, 1, 0, 0, 0, 0, time.Local),
	})
	require.NoError(t, err)

	c, err := st.CreateContract(ctx, storage.Contract{
		ContractNumber: "C-1",
		UserID:         7,
		RateID:         &rate.ID,
		IsActive:       true,
	})
	require.NoError(t, err)
	require.NoError(t, st.CreateUser(ctx, storage.User{ID: "u1", Username: "alice", AccountID: 7}))

	// No readings this month: the contract is skipped, the run succeeds.
	ref := time.Date(2024, time.January, 20, 0, 0, 0, 0, time.Local)
	require.NoError(t, SnapshotAll(ctx, st, svc, nil, ref))

	snap, err := st.GetBillSnapshot(ctx, c.ID, "2024-01")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestParseReadingsCSVRejectsBadRows(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/42_export.csv"
	writeFile(t, path, "date,hour,energy\n2024-01-15,12,2.5\n2024-01-15,24,1.0\n")

	_, err := parseReadingsCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad hour")
}

func TestParseReadingsCSV(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/42_export.csv"
	writeFile(t, path, "date,hour,energy\n2024-01-15,12,2.5\n2024-01-16,0,0\n")

	readings, err := parseReadingsCSV(path)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 12, readings[0].Hour)
	assert.Equal(t, 0.0, readings[1].Energy, "a zero reading is a valid measurement")
}

func TestParseReadingsCSVRejectsBadFirstRow(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/42_export.csv"
	writeFile(t, path, "2024-13-45,12,2.5\n2024-01-16,0,1.0\n")

	_, err := parseReadingsCSV(path)
	require.Error(t, err, "a malformed first data row is not a header")
	assert.Contains(t, err.Error(), "bad date")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestContractFromFilename(t *testing.T) {
	id, ok := contractFromFilename("42_export.csv")
	require.True(t, ok)
	assert.Equal(t, uint(42), id)

	_, ok = contractFromFilename("export.csv")
	assert.False(t, ok)
}
