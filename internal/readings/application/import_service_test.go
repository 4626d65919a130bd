package application

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	readings "meterbill/internal/readings/domain"
	"meterbill/internal/readings/infrastructure/memory"
)

func newTestImportService(t *testing.T) *ImportService {
	t.Helper()
	svc, err := NewImportService(memory.NewRepository(), log.New(os.Stdout, "", log.LstdFlags))
	require.NoError(t, err)
	return svc
}

func testBatch(start time.Time, n int) []readings.Reading {
	out := make([]readings.Reading, 0, n)
	for i := 0; i < n; i++ {
		s := start.Add(time.Duration(i) * 30 * time.Minute)
		out = append(out, readings.Reading{Channel: "E1", Start: s, End: s.Add(30 * time.Minute), Value: 500})
	}
	return out
}

func TestImport_AcceptsBatch(t *testing.T) {
	svc := newTestImportService(t)
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

	res, err := svc.Import(context.Background(), "NMI001", testBatch(start, 48))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Accepted: 48}, res)
}

func TestImport_ReimportCountsDuplicates(t *testing.T) {
	svc := newTestImportService(t)
	ctx := context.Background()
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Import(ctx, "NMI001", testBatch(start, 10))
	require.NoError(t, err)

	// Same rows plus one new one: only the new row lands.
	res, err := svc.Import(ctx, "NMI001", testBatch(start, 11))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, 10, res.Duplicates)
	assert.Zero(t, res.Rejected)
}

func TestImport_RejectsInvalidWithoutAborting(t *testing.T) {
	svc := newTestImportService(t)
	ctx := context.Background()
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

	batch := testBatch(start, 5)
	batch = append(batch,
		readings.Reading{Channel: "", Start: start, End: start.Add(time.Hour), Value: 1},
		readings.Reading{Channel: "E1", Start: start.Add(2 * time.Hour), End: start.Add(2 * time.Hour), Value: 1},
	)

	res, err := svc.Import(ctx, "NMI001", batch)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Accepted)
	assert.Equal(t, 2, res.Rejected)
}

func TestImport_EmptyMeterID(t *testing.T) {
	svc := newTestImportService(t)
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Import(context.Background(), "", testBatch(start, 1))
	assert.ErrorIs(t, err, readings.ErrEmptyMeterID)
}

func TestDataRangeAndDelete(t *testing.T) {
	svc := newTestImportService(t)
	ctx := context.Background()
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _, ok, err := svc.DataRange(ctx, "NMI001")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Import(ctx, "NMI001", testBatch(start, 48))
	require.NoError(t, err)

	first, last, ok, err := svc.DataRange(ctx, "NMI001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, first.Equal(start))
	assert.True(t, last.Equal(start.AddDate(0, 0, 1)))

	require.NoError(t, svc.DeleteMeter(ctx, "NMI001"))
	_, _, ok, err = svc.DataRange(ctx, "NMI001")
	require.NoError(t, err)
	assert.False(t, ok)
}
