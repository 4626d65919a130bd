package metrics

import (
	"log"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "meterbill_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	importReadings *prometheus.CounterVec
	importBatches  *prometheus.CounterVec

	rollupDays      *prometheus.CounterVec
	rollupMonths    *prometheus.CounterVec
	estimatedDays   prometheus.Counter
	skippedReadings prometheus.Counter

	billRequests *prometheus.CounterVec
	billLatency  *prometheus.HistogramVec
)

// Init registers the engine's metrics. Safe to call more than once.
func Init(logger *log.Logger) {
	registerOnce.Do(func() {
		importReadings = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "import_readings_total",
				Help: "Imported readings by outcome",
			},
			[]string{"outcome"},
		)
		importBatches = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "import_batches_total",
				Help: "Import batches by result",
			},
			[]string{"result"},
		)
		rollupDays = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rollup_days_total",
				Help: "Daily rollup upserts by result",
			},
			[]string{"result"},
		)
		rollupMonths = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rollup_months_total",
				Help: "Monthly rollup upserts by result",
			},
			[]string{"result"},
		)
		estimatedDays = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "estimated_days_total",
				Help: "Days filled by carry-forward estimation (data gaps)",
			},
		)
		skippedReadings = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "skipped_readings_total",
				Help: "Readings skipped during rollup as inconsistent",
			},
		)
		billRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bill_requests_total",
				Help: "Bill computations by tariff and result",
			},
			[]string{"tariff", "result"},
		)
		billLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "bill_latency_seconds",
				Help:    "Bill computation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tariff"},
		)

		collectors := []prometheus.Collector{
			importReadings, importBatches,
			rollupDays, rollupMonths, estimatedDays, skippedReadings,
			billRequests, billLatency,
		}
		for _, c := range collectors {
			if err := prometheus.Register(c); err != nil {
				if logger != nil {
					logger.Printf("metrics register error: %v", err)
				}
			}
		}
	})
}

// ImportResult records the outcome of one import batch.
func ImportResult(accepted, duplicates, rejected int, ok bool) {
	if importReadings == nil {
		return
	}
	importReadings.WithLabelValues("accepted").Add(float64(accepted))
	importReadings.WithLabelValues("duplicate").Add(float64(duplicates))
	importReadings.WithLabelValues("rejected").Add(float64(rejected))
	importBatches.WithLabelValues(resultLabel(ok)).Inc()
}

// RollupDay records one daily upsert attempt.
func RollupDay(ok bool) {
	if rollupDays != nil {
		rollupDays.WithLabelValues(resultLabel(ok)).Inc()
	}
}

// RollupMonth records one monthly upsert attempt.
func RollupMonth(ok bool) {
	if rollupMonths != nil {
		rollupMonths.WithLabelValues(resultLabel(ok)).Inc()
	}
}

// EstimatedDay records one carry-forward gap fill.
func EstimatedDay() {
	if estimatedDays != nil {
		estimatedDays.Inc()
	}
}

// SkippedReading records one reading dropped as inconsistent.
func SkippedReading() {
	if skippedReadings != nil {
		skippedReadings.Inc()
	}
}

// BillComputed records one bill computation.
func BillComputed(tariff string, ok bool, seconds float64) {
	if billRequests == nil {
		return
	}
	billRequests.WithLabelValues(tariff, resultLabel(ok)).Inc()
	billLatency.WithLabelValues(tariff).Observe(seconds)
}

func resultLabel(ok bool) string {
	if ok {
		return resultSuccess
	}
	return resultError
}
