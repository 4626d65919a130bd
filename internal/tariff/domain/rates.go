// Package tariff prices billing windows against retailer rate cards.
// Only the charge composition lives here; the rates themselves come from
// a RateStore keyed by retailer and financial year.
package tariff

import "context"

// Split selects which regional time-of-use split a plan consumes.
type Split int

const (
	SplitRegional Split = iota + 1
	SplitSEQ
)

// Tariff names accepted by Charges.
const (
	TariffGeneral   = "general"
	TariffTOU       = "tou"
	TariffTOUDemand = "tou-demand"
)

// Tariffs lists every supported tariff name.
var Tariffs = []string{TariffGeneral, TariffTOU, TariffTOUDemand}

// Rates is one retailer's price card for a financial year. Energy and
// supply rates are in cents, demand rates in dollars per kW per month.
type Rates struct {
	Retailer      string
	FinancialYear int // year the July-June fiscal year starts
	Split         Split

	GeneralSupply float64 // cents/day
	GeneralUsage  float64 // cents/kWh

	TOUSupply   float64 // cents/day
	TOUPeak     float64 // cents/kWh
	TOUShoulder float64 // cents/kWh
	TOUOffPeak  float64 // cents/kWh

	DemandSupply  float64 // cents/day
	DemandUsage   float64 // cents/kWh
	DemandPeak    float64 // $/kW/month during the peak season
	DemandOffPeak float64 // $/kW/month otherwise, floored at 3 kW
}

// RateStore resolves retailer price cards. Implementations return
// ErrUnknownTariff when the retailer or year is not on file.
type RateStore interface {
	Rates(ctx context.Context, retailer string, financialYear int) (Rates, error)
	Retailers() []string
}
