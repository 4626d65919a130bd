package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	readingsmem "meterbill/internal/readings/infrastructure/memory"
	rollup "meterbill/internal/rollup/domain"
	rollupmem "meterbill/internal/rollup/infrastructure/memory"
)

func newTestQueries(t *testing.T) (*Queries, *readingsmem.Repository, *rollupmem.Repository) {
	t.Helper()
	reads := readingsmem.NewRepository()
	rollups := rollupmem.NewRepository()
	q, err := NewQueries(reads, rollups, rollups)
	require.NoError(t, err)
	return q, reads, rollups
}

func TestMonthlyTotals_UpToMonth(t *testing.T) {
	q, _, rollups := newTestQueries(t)
	ctx := context.Background()

	for m := time.January; m <= time.June; m++ {
		require.NoError(t, rollups.UpsertMonthly(ctx, testMeter, rollup.MonthlyTotal{
			Year: 2017, Month: m, NumDays: 30, LoadTotal: float64(m) * 1000,
		}))
	}

	out, err := q.MonthlyTotals(ctx, testMeter, 2017, time.March)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, time.March, out[2].Month)
}

func TestMonthly_MissingIsNotAnError(t *testing.T) {
	q, _, _ := newTestQueries(t)
	_, ok, err := q.Monthly(context.Background(), testMeter, 2017, time.January)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWeekdayAverages(t *testing.T) {
	q, _, rollups := newTestQueries(t)
	ctx := context.Background()

	// 2017-06-05 is a Monday. Two weeks of data: Mondays 1000/3000,
	// Saturdays 500/500, one estimated Sunday to be skipped.
	monday := time.Date(2017, 6, 5, 0, 0, 0, 0, time.UTC)
	rows := []rollup.DailyTotal{
		{Day: monday, LoadTotal: 1000},
		{Day: monday.AddDate(0, 0, 7), LoadTotal: 3000},
		{Day: monday.AddDate(0, 0, 5), LoadTotal: 500},
		{Day: monday.AddDate(0, 0, 12), LoadTotal: 500},
		{Day: monday.AddDate(0, 0, 6), LoadTotal: 9999, Estimated: true},
	}
	for _, d := range rows {
		require.NoError(t, rollups.UpsertDaily(ctx, testMeter, d))
	}

	avgs, err := q.WeekdayAverages(ctx, testMeter, monday, monday.AddDate(0, 0, 14))
	require.NoError(t, err)

	assert.InDelta(t, 2000, avgs["Mon"], 1e-9)
	assert.InDelta(t, 500, avgs["Sat"], 1e-9)
	assert.InDelta(t, 2000, avgs["weekdays"], 1e-9)
	assert.InDelta(t, 500, avgs["weekends"], 1e-9)
	_, hasSunday := avgs["Sun"]
	assert.False(t, hasSunday)
}

func TestDaySegments(t *testing.T) {
	q, reads, _ := newTestQueries(t)
	ctx := context.Background()

	day := time.Date(2017, 6, 1, 0, 0, 0, 0, time.UTC)
	// 100 Wh at 01:00 (segment 0) and 200 Wh at 13:00 (segment 4).
	_, err := reads.Insert(ctx, testMeter, halfHours("E1", day.Add(time.Hour), 1, 100))
	require.NoError(t, err)
	_, err = reads.Insert(ctx, testMeter, halfHours("E1", day.Add(13*time.Hour), 1, 200))
	require.NoError(t, err)

	segments, err := q.DaySegments(ctx, testMeter, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, segments, 1)

	segs := segments[day]
	assert.InDelta(t, 100, segs[0], 1e-6)
	assert.InDelta(t, 200, segs[4], 1e-6)
	assert.Zero(t, segs[7])
}

func TestMonthRangesQuery(t *testing.T) {
	q, reads, _ := newTestQueries(t)
	ctx := context.Background()

	start := time.Date(2016, 12, 15, 0, 0, 0, 0, time.UTC)
	_, err := reads.Insert(ctx, testMeter, halfHours("E1", start, 48*50, 500))
	require.NoError(t, err)

	ranges, err := q.MonthRanges(ctx, testMeter)
	require.NoError(t, err)
	require.Len(t, ranges, 3)
	assert.Equal(t, time.December, ranges[0].Month)
	assert.Equal(t, time.February, ranges[2].Month)
}
