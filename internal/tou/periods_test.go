package tou

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(month time.Month, hour, min int) time.Time {
	return time.Date(2017, month, 10, hour, min, 0, 0, time.UTC)
}

func TestRegional_PeakWindowEdges(t *testing.T) {
	// The window is (15:00, 21:30]: an interval starting exactly at
	// 15:00 is not yet peak, one ending at 21:30 still is.
	assert.False(t, Regional.InPeakWindow(at(time.January, 15, 0)))
	assert.True(t, Regional.InPeakWindow(at(time.January, 15, 1)))
	assert.True(t, Regional.InPeakWindow(at(time.January, 21, 30)))
	assert.False(t, Regional.InPeakWindow(at(time.January, 21, 31)))
}

func TestRegional_Season(t *testing.T) {
	assert.True(t, Regional.InPeakSeason(time.December))
	assert.True(t, Regional.InPeakSeason(time.January))
	assert.True(t, Regional.InPeakSeason(time.February))
	assert.False(t, Regional.InPeakSeason(time.March))
	assert.False(t, Regional.InPeakSeason(time.July))
}

func TestRegional_Classify(t *testing.T) {
	// In season and in window.
	assert.Equal(t, BandPeak, Regional.Classify(at(time.January, 18, 0)))
	// In window but out of season.
	assert.Equal(t, BandShoulder, Regional.Classify(at(time.June, 18, 0)))
	// No off-peak band: overnight is still shoulder.
	assert.Equal(t, BandShoulder, Regional.Classify(at(time.January, 3, 0)))
}

func TestSEQ_Classify(t *testing.T) {
	assert.Equal(t, BandPeak, SEQ.Classify(at(time.November, 17, 0)))
	assert.Equal(t, BandShoulder, SEQ.Classify(at(time.April, 17, 0)))
	// Off-peak wraps midnight: (22:00, 07:00].
	assert.Equal(t, BandOffPeak, SEQ.Classify(at(time.November, 23, 0)))
	assert.Equal(t, BandOffPeak, SEQ.Classify(at(time.November, 3, 0)))
	assert.Equal(t, BandOffPeak, SEQ.Classify(at(time.November, 7, 0)))
	assert.Equal(t, BandShoulder, SEQ.Classify(at(time.November, 7, 1)))
	assert.Equal(t, BandShoulder, SEQ.Classify(at(time.November, 22, 0)))
}

func TestBandString(t *testing.T) {
	assert.Equal(t, "peak", BandPeak.String())
	assert.Equal(t, "shoulder", BandShoulder.String())
	assert.Equal(t, "offpeak", BandOffPeak.String())
}
