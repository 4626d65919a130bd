package rollup

import "sort"

// The evening peak window is 6.5 hours, so average demand over it is
// peak energy divided by 6.5.
const peakWindowHours = 6.5

// demandSampleDays is how many of the highest days feed the monthly figure.
const demandSampleDays = 4

// minDistinctSamples guards against data that is not genuine interval
// data: fewer distinct per-day values than this and the estimate is
// doubled to avoid under-billing. A policy heuristic, not a physical law.
const minDistinctSamples = 5

// AverageDailyPeakDemand converts peak-period energy in kWh to the average
// kW drawn over the peak window.
func AverageDailyPeakDemand(peakKWh float64) float64 {
	return peakKWh / peakWindowHours
}

// EstimateMonthlyDemand derives the monthly peak-demand figure in kW from
// a month of daily totals. It averages the top four days by peak-period
// energy (all days when fewer exist) and never fails: no data yields 0.
func EstimateMonthlyDemand(days []DailyTotal) float64 {
	if len(days) == 0 {
		return 0
	}

	peaks := make([]float64, 0, len(days))
	for _, d := range days {
		peaks = append(peaks, d.PeakPeriodEnergy())
	}

	sorted := append([]float64(nil), peaks...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	n := demandSampleDays
	if len(sorted) < n {
		n = len(sorted)
	}
	var sum float64
	for _, v := range sorted[:n] {
		sum += v
	}
	demand := AverageDailyPeakDemand(sum / float64(n) / 1000)

	distinct := make(map[float64]struct{}, len(peaks))
	for _, v := range peaks {
		distinct[v] = struct{}{}
	}
	if len(distinct) < minDistinctSamples {
		demand *= 2
	}
	return demand
}
