// Package rollup holds the daily and monthly aggregate records derived
// from raw readings, and the demand estimation applied to them. Totals
// flow one way: readings determine dailies, dailies determine monthlies.
package rollup

import "time"

// DailyTotal is one calendar day of rolled-up consumption for a meter.
// The load split is computed under both regional time-of-use definitions
// so a bill can consume whichever its plan prescribes; off-peak energy is
// the remainder of the load total.
type DailyTotal struct {
	Day time.Time // midnight at the start of the day

	LoadTotal    float64 // Wh
	ControlTotal float64
	ExportTotal  float64

	// Regional definition split.
	LoadPeak1     float64
	LoadShoulder1 float64
	// SEQ definition split.
	LoadPeak2     float64
	LoadShoulder2 float64

	// Estimated marks a day synthesized by carrying the last real day
	// forward to complete a month in progress.
	Estimated bool
}

// PeakPeriodEnergy is the day's peak-period energy in Wh used for demand
// estimation: the peak split when any, otherwise the shoulder split.
func (d DailyTotal) PeakPeriodEnergy() float64 {
	if d.LoadPeak1 != 0 {
		return d.LoadPeak1
	}
	return d.LoadShoulder1
}
