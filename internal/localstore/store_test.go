package localstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	readings "meterbill/internal/readings/domain"
	rollup "meterbill/internal/rollup/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func batchOf(start time.Time, n int, value float64) []readings.Reading {
	out := make([]readings.Reading, 0, n)
	for i := 0; i < n; i++ {
		s := start.Add(time.Duration(i) * 30 * time.Minute)
		out = append(out, readings.Reading{Channel: "E1", Start: s, End: s.Add(30 * time.Minute), Value: value, QualityMethod: "A"})
	}
	return out
}

func TestStore_InsertAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

	n, err := store.Insert(ctx, "NMI001", batchOf(start, 4, 500))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := store.Query(ctx, "NMI001", readings.LoadChannels, start, start.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "E1", got[0].Channel)
	assert.InDelta(t, 500, got[0].Value, 1e-9)
	assert.Equal(t, "A", got[0].QualityMethod)
	assert.True(t, got[0].Start.Equal(start))
}

func TestStore_InsertDeduplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.Insert(ctx, "NMI001", batchOf(start, 4, 500))
	require.NoError(t, err)
	n, err := store.Insert(ctx, "NMI001", batchOf(start, 5, 500))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_DataRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, ok, err := store.DataRange(ctx, "NMI001")
	require.NoError(t, err)
	assert.False(t, ok)

	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = store.Insert(ctx, "NMI001", batchOf(start, 48, 500))
	require.NoError(t, err)

	first, last, ok, err := store.DataRange(ctx, "NMI001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, first.Equal(start))
	assert.True(t, last.Equal(start.AddDate(0, 0, 1)))

	// An earlier batch inserted later still moves the range start back.
	earlier := start.AddDate(0, 0, -2)
	_, err = store.Insert(ctx, "NMI001", batchOf(earlier, 4, 500))
	require.NoError(t, err)

	first, last, ok, err = store.DataRange(ctx, "NMI001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, first.Equal(earlier))
	assert.True(t, last.Equal(start.AddDate(0, 0, 1)))
}

func TestStore_MetersAreIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.Insert(ctx, "NMI001", batchOf(start, 2, 500))
	require.NoError(t, err)

	got, err := store.Query(ctx, "NMI002", readings.LoadChannels, start, start.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_DailyRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

	tot := rollup.DailyTotal{
		Day: day, LoadTotal: 24000, ControlTotal: 500, ExportTotal: 100,
		LoadPeak1: 4000, LoadShoulder1: 20000, LoadPeak2: 3000, LoadShoulder2: 15000,
	}
	require.NoError(t, store.UpsertDaily(ctx, "NMI001", tot))

	got, err := store.GetDaily(ctx, "NMI001", day)
	require.NoError(t, err)
	assert.InDelta(t, 24000, got.LoadTotal, 1e-9)
	assert.False(t, got.Estimated)

	// Upsert overwrites.
	tot.LoadTotal = 12000
	tot.Estimated = true
	require.NoError(t, store.UpsertDaily(ctx, "NMI001", tot))
	got, err = store.GetDaily(ctx, "NMI001", day)
	require.NoError(t, err)
	assert.InDelta(t, 12000, got.LoadTotal, 1e-9)
	assert.True(t, got.Estimated)

	_, err = store.GetDaily(ctx, "NMI001", day.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, rollup.ErrDailyNotFound)
}

func TestStore_ListDailyWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.UpsertDaily(ctx, "NMI001", rollup.DailyTotal{
			Day: day.AddDate(0, 0, i), LoadTotal: float64(i),
		}))
	}

	got, err := store.ListDaily(ctx, "NMI001", day.AddDate(0, 0, 1), day.AddDate(0, 0, 4))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Day.Equal(day.AddDate(0, 0, 1)))
	assert.True(t, got[2].Day.Equal(day.AddDate(0, 0, 3)))
}

func TestStore_MonthlyRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tot := rollup.MonthlyTotal{
		Year: 2017, Month: time.January, NumDays: 31, DaysWithData: 31,
		LoadTotal: 700000, Demand: 4.2,
	}
	require.NoError(t, store.UpsertMonthly(ctx, "NMI001", tot))

	got, err := store.GetMonthly(ctx, "NMI001", 2017, time.January)
	require.NoError(t, err)
	assert.Equal(t, 31, got.DaysWithData)
	assert.InDelta(t, 4.2, got.Demand, 1e-9)

	_, err = store.GetMonthly(ctx, "NMI001", 2017, time.February)
	assert.ErrorIs(t, err, rollup.ErrMonthlyNotFound)

	list, err := store.ListMonthly(ctx, "NMI001", 2017)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestStore_DeleteMeterRemovesFile(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = store.Insert(ctx, "NMI001", batchOf(start, 2, 500))
	require.NoError(t, err)

	path := filepath.Join(dir, "meter_NMI001.db")
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, store.DeleteMeter(ctx, "NMI001"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestStore_RejectsBadMeterID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, "../escape", nil)
	assert.ErrorIs(t, err, ErrBadMeterID)
	_, err = store.Insert(ctx, "", nil)
	assert.ErrorIs(t, err, ErrBadMeterID)
}
