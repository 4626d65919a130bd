package rollup

import "time"

// MonthlyTotal is the month-level aggregate of a meter's daily totals.
// It is derived entirely from DailyTotal rows; recomputing it is an
// upsert keyed by (year, month).
type MonthlyTotal struct {
	Year  int
	Month time.Month

	NumDays      int // calendar days in the month
	DaysWithData int // daily rows summed, estimated days included

	LoadTotal    float64 // Wh
	ControlTotal float64
	ExportTotal  float64

	LoadPeak1     float64
	LoadShoulder1 float64
	LoadPeak2     float64
	LoadShoulder2 float64

	Demand float64 // kW, see EstimateMonthlyDemand
}

// SumDailies builds the monthly aggregate for (year, month) from its
// constituent daily rows. A month with no rows yields all zeros.
func SumDailies(year int, month time.Month, numDays int, days []DailyTotal) MonthlyTotal {
	m := MonthlyTotal{Year: year, Month: month, NumDays: numDays}
	for _, d := range days {
		m.DaysWithData++
		m.LoadTotal += d.LoadTotal
		m.ControlTotal += d.ControlTotal
		m.ExportTotal += d.ExportTotal
		m.LoadPeak1 += d.LoadPeak1
		m.LoadShoulder1 += d.LoadShoulder1
		m.LoadPeak2 += d.LoadPeak2
		m.LoadShoulder2 += d.LoadShoulder2
	}
	m.Demand = EstimateMonthlyDemand(days)
	return m
}
