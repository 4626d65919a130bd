package tariff

import (
	"fmt"

	"meterbill/internal/tou"
)

const gstRate = 0.10

// Off-season demand is subject to a minimum chargeable demand of 3 kW.
const minChargeableDemandKW = 3.0

// centsPerDollar converts the $/kW/month demand rates into cents.
const centsPerDollar = 100

// Charges prices a usage window under the named tariff.
func Charges(name string, r Rates, u Usage) (Result, error) {
	switch name {
	case TariffGeneral:
		return ChargesGeneral(r, u)
	case TariffTOU:
		return ChargesTOU(r, u)
	case TariffTOUDemand:
		return ChargesTOUDemand(r, u)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTariff, name)
	}
}

// ChargesGeneral prices a flat-rate tariff: daily supply plus a single
// usage rate over total consumption.
func ChargesGeneral(r Rates, u Usage) (Result, error) {
	if u.Days <= 0 {
		return Result{}, fmt.Errorf("%w: %d days", ErrInvalidPeriod, u.Days)
	}
	res := newResult(r.Retailer, TariffGeneral, u)
	res.SupplyCharge = r.GeneralSupply * float64(u.Days)
	res.ConsumptionCharge = r.GeneralUsage * u.TotalKWh
	finish(&res, res.SupplyCharge+res.ConsumptionCharge)
	return res, nil
}

// ChargesTOU prices a time-of-use tariff: daily supply plus each
// consumption component at its own rate.
func ChargesTOU(r Rates, u Usage) (Result, error) {
	if u.Days <= 0 {
		return Result{}, fmt.Errorf("%w: %d days", ErrInvalidPeriod, u.Days)
	}
	res := newResult(r.Retailer, TariffTOU, u)
	res.SupplyCharge = r.TOUSupply * float64(u.Days)
	res.PeakCharge = r.TOUPeak * u.PeakKWh
	res.ShoulderCharge = r.TOUShoulder * u.ShoulderKWh
	res.OffPeakCharge = r.TOUOffPeak * u.OffPeakKWh
	finish(&res, res.SupplyCharge+res.PeakCharge+res.ShoulderCharge+res.OffPeakCharge)
	return res, nil
}

// ChargesTOUDemand prices a demand tariff: daily supply, a flat usage
// rate over total consumption, and a monthly demand charge. The demand
// rate depends on whether the billing month falls in the peak season;
// off season the demand quantity is floored at 3 kW. The monthly demand
// amount is pro-rated by billed days over the month's calendar days so a
// partial window is charged proportionally.
func ChargesTOUDemand(r Rates, u Usage) (Result, error) {
	if u.Days <= 0 || u.DaysInMonth <= 0 {
		return Result{}, fmt.Errorf("%w: %d days over %d", ErrInvalidPeriod, u.Days, u.DaysInMonth)
	}
	res := newResult(r.Retailer, TariffTOUDemand, u)
	res.SupplyCharge = r.DemandSupply * float64(u.Days)
	res.ConsumptionCharge = r.DemandUsage * u.TotalKWh

	res.PeakSeason = tou.Regional.InPeakSeason(u.Start.Month())
	res.BilledDemandKW = u.DemandKW
	var monthly float64
	if res.PeakSeason {
		monthly = res.BilledDemandKW * r.DemandPeak * centsPerDollar
	} else {
		if res.BilledDemandKW < minChargeableDemandKW {
			res.BilledDemandKW = minChargeableDemandKW
		}
		monthly = res.BilledDemandKW * r.DemandOffPeak * centsPerDollar
	}
	res.DemandCharge = monthly * float64(u.Days) / float64(u.DaysInMonth)

	finish(&res, res.SupplyCharge+res.ConsumptionCharge+res.DemandCharge)
	return res, nil
}

func newResult(retailer, name string, u Usage) Result {
	return Result{
		Retailer: retailer,
		Tariff:   name,
		Start:    u.Start,
		End:      u.End,
	}
}

func finish(res *Result, total float64) {
	res.TotalExGST = total
	res.TotalIncGST = total * (1 + gstRate)
}
