// Package tou classifies instants into time-of-use billing bands under
// the two regional tariff definitions, and carries the calendar helpers
// shared by the rollup and tariff engines.
package tou

import "time"

// Band is a time-of-use billing classification.
type Band int

const (
	BandOffPeak Band = iota
	BandShoulder
	BandPeak
)

// String returns the band name.
func (b Band) String() string {
	switch b {
	case BandPeak:
		return "peak"
	case BandShoulder:
		return "shoulder"
	default:
		return "offpeak"
	}
}

// Definition is one regional time-of-use scheme. Peak applies only inside
// the peak season; the window bounds are minutes after midnight and the
// window is half-open on the left: (PeakStart, PeakEnd].
type Definition struct {
	Name       string
	PeakStart  int
	PeakEnd    int
	PeakMonths []time.Month

	// Off-peak band, applied outside the peak window. Wraps midnight
	// when OffPeakEnd < OffPeakStart. Schemes without an off-peak band
	// classify everything non-peak as shoulder.
	HasOffPeak   bool
	OffPeakStart int
	OffPeakEnd   int
}

// Regional is the tariff definition used outside the south-east grid:
// peak 3pm-9:30pm in the summer months, everything else shoulder.
var Regional = Definition{
	Name:       "regional",
	PeakStart:  15 * 60,
	PeakEnd:    21*60 + 30,
	PeakMonths: []time.Month{time.December, time.January, time.February},
}

// SEQ is the south-east definition: a shorter evening peak over a longer
// season, with an overnight off-peak band.
var SEQ = Definition{
	Name:      "seq",
	PeakStart: 16 * 60,
	PeakEnd:   20 * 60,
	PeakMonths: []time.Month{
		time.November, time.December, time.January,
		time.February, time.March,
	},
	HasOffPeak:   true,
	OffPeakStart: 22 * 60,
	OffPeakEnd:   7 * 60,
}

// InPeakSeason reports whether the month falls in the peak season.
func (d Definition) InPeakSeason(m time.Month) bool {
	for _, pm := range d.PeakMonths {
		if m == pm {
			return true
		}
	}
	return false
}

// InPeakWindow reports whether the time of day is inside the peak window,
// ignoring season.
func (d Definition) InPeakWindow(t time.Time) bool {
	m := minuteOfDay(t)
	return m > d.PeakStart && m <= d.PeakEnd
}

// Classify returns the billing band for an instant.
func (d Definition) Classify(t time.Time) Band {
	if d.InPeakSeason(t.Month()) && d.InPeakWindow(t) {
		return BandPeak
	}
	if d.HasOffPeak && inWrappedWindow(minuteOfDay(t), d.OffPeakStart, d.OffPeakEnd) {
		return BandOffPeak
	}
	return BandShoulder
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// inWrappedWindow treats (start, end] windows, wrapping midnight when
// end < start.
func inWrappedWindow(m, start, end int) bool {
	if end < start {
		return m > start || m <= end
	}
	return m > start && m <= end
}
