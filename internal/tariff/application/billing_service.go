package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"meterbill/internal/observability/metrics"
	rollup "meterbill/internal/rollup/domain"
	tariff "meterbill/internal/tariff/domain"
	"meterbill/internal/tou"
)

// UsageReader supplies the stored rollups a bill is priced against.
type UsageReader interface {
	ListDaily(ctx context.Context, meterID string, start, end time.Time) ([]rollup.DailyTotal, error)
	GetMonthly(ctx context.Context, meterID string, year int, month time.Month) (rollup.MonthlyTotal, error)
}

// BillingService prices billing windows against the rate store. Bills
// are computed on request from stored rollups and never persisted.
type BillingService struct {
	usage  UsageReader
	rates  tariff.RateStore
	logger *log.Logger
}

// NewBillingService constructs the service.
func NewBillingService(usage UsageReader, rates tariff.RateStore, logger *log.Logger) (*BillingService, error) {
	if usage == nil || rates == nil {
		return nil, errors.New("billing: nil dependency")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &BillingService{usage: usage, rates: rates, logger: logger}, nil
}

// Retailers lists the retailers the rate store has cards for.
func (s *BillingService) Retailers() []string {
	return s.rates.Retailers()
}

// MonthlyBill prices one calendar month under the named retailer and
// tariff. A month with no rollup row yet is priced as a full month of
// zero consumption, yielding a supply-only bill.
func (s *BillingService) MonthlyBill(ctx context.Context, meterID, retailer, name string, year int, month time.Month) (tariff.Result, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	began := time.Now()
	res, err := s.bill(ctx, meterID, retailer, name, start, end)
	metrics.BillComputed(name, err == nil, time.Since(began).Seconds())
	return res, err
}

// Bill prices an arbitrary [start, end) window. Demand is re-estimated
// from the window's daily rows rather than taken from a stored month.
func (s *BillingService) Bill(ctx context.Context, meterID, retailer, name string, start, end time.Time) (tariff.Result, error) {
	if !end.After(start) {
		return tariff.Result{}, fmt.Errorf("%w: end %s not after start %s", tariff.ErrInvalidPeriod, end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	began := time.Now()
	res, err := s.bill(ctx, meterID, retailer, name, start, end)
	metrics.BillComputed(name, err == nil, time.Since(began).Seconds())
	return res, err
}

// Comparison is one retailer/tariff pairing priced over a window.
type Comparison struct {
	Retailer string
	Tariff   string
	Result   tariff.Result
	Err      error
}

// Compare prices a window under every retailer and tariff combination,
// cheapest first. Pairings that fail to price carry their error and
// sort last.
func (s *BillingService) Compare(ctx context.Context, meterID string, start, end time.Time) ([]Comparison, error) {
	var out []Comparison
	for _, retailer := range s.rates.Retailers() {
		for _, name := range tariff.Tariffs {
			res, err := s.bill(ctx, meterID, retailer, name, start, end)
			if err != nil {
				s.logger.Printf("billing: compare meter=%s retailer=%s tariff=%s: %v", meterID, retailer, name, err)
			}
			out = append(out, Comparison{Retailer: retailer, Tariff: name, Result: res, Err: err})
		}
	}
	sortComparisons(out)
	return out, nil
}

func (s *BillingService) bill(ctx context.Context, meterID, retailer, name string, start, end time.Time) (tariff.Result, error) {
	rates, err := s.rates.Rates(ctx, retailer, tou.FinancialYearStarting(start))
	if err != nil {
		return tariff.Result{}, err
	}

	var u tariff.Usage
	if wholeMonth(start, end) {
		u, err = s.monthlyUsage(ctx, meterID, rates.Split, start)
	} else {
		u, err = s.windowUsage(ctx, meterID, rates.Split, start, end)
	}
	if err != nil {
		return tariff.Result{}, err
	}
	return tariff.Charges(name, rates, u)
}

// monthlyUsage builds usage from the stored monthly aggregate. Billed
// days are the days the meter actually has rows for, so a month in
// progress is pro-rated; a missing month bills the full month at zero.
func (s *BillingService) monthlyUsage(ctx context.Context, meterID string, split tariff.Split, start time.Time) (tariff.Usage, error) {
	numDays := tou.DaysInMonth(start.Year(), start.Month())
	u := tariff.Usage{
		Start:       start,
		End:         start.AddDate(0, 1, 0),
		Days:        numDays,
		DaysInMonth: numDays,
	}

	m, err := s.usage.GetMonthly(ctx, meterID, start.Year(), start.Month())
	if errors.Is(err, rollup.ErrMonthlyNotFound) {
		return u, nil
	}
	if err != nil {
		return tariff.Usage{}, err
	}

	if m.DaysWithData > 0 {
		u.Days = m.DaysWithData
	}
	u.TotalKWh = m.LoadTotal / 1000
	u.PeakKWh, u.ShoulderKWh = splitEnergy(split, m.LoadPeak1, m.LoadShoulder1, m.LoadPeak2, m.LoadShoulder2)
	u.OffPeakKWh = clampZero(u.TotalKWh - u.PeakKWh - u.ShoulderKWh)
	u.DemandKW = m.Demand
	return u, nil
}

// windowUsage builds usage from daily rows when the window is not a
// whole calendar month. DaysInMonth comes from the month the window
// starts in, matching how the demand pro-ration is defined.
func (s *BillingService) windowUsage(ctx context.Context, meterID string, split tariff.Split, start, end time.Time) (tariff.Usage, error) {
	days, err := s.usage.ListDaily(ctx, meterID, start, end)
	if err != nil {
		return tariff.Usage{}, err
	}

	u := tariff.Usage{
		Start:       start,
		End:         end,
		Days:        len(days),
		DaysInMonth: tou.DaysInMonth(start.Year(), start.Month()),
	}
	if len(days) == 0 {
		u.Days = int(end.Sub(start).Hours() / 24)
	}

	var peak1, shoulder1, peak2, shoulder2 float64
	for _, d := range days {
		u.TotalKWh += d.LoadTotal / 1000
		peak1 += d.LoadPeak1
		shoulder1 += d.LoadShoulder1
		peak2 += d.LoadPeak2
		shoulder2 += d.LoadShoulder2
	}
	u.PeakKWh, u.ShoulderKWh = splitEnergy(split, peak1, shoulder1, peak2, shoulder2)
	u.OffPeakKWh = clampZero(u.TotalKWh - u.PeakKWh - u.ShoulderKWh)
	u.DemandKW = rollup.EstimateMonthlyDemand(days)
	return u, nil
}

// splitEnergy selects the regional or SEQ time-of-use split, in kWh.
func splitEnergy(split tariff.Split, peak1, shoulder1, peak2, shoulder2 float64) (peakKWh, shoulderKWh float64) {
	if split == tariff.SplitSEQ {
		return peak2 / 1000, shoulder2 / 1000
	}
	return peak1 / 1000, shoulder1 / 1000
}

func wholeMonth(start, end time.Time) bool {
	return start.Equal(tou.MonthStart(start)) && end.Equal(start.AddDate(0, 1, 0))
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func sortComparisons(cs []Comparison) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		return a.Result.TotalIncGST < b.Result.TotalIncGST
	})
}
