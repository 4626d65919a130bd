package tariff

import "time"

// Usage summarises the consumption a billing window is priced against.
type Usage struct {
	Start time.Time
	End   time.Time

	Days        int // billed days in the window
	DaysInMonth int // calendar days of the month the window falls in

	TotalKWh    float64
	PeakKWh     float64
	ShoulderKWh float64
	OffPeakKWh  float64

	DemandKW float64 // computed average demand, before any floor
}

// Result is a priced bill for one retailer and tariff over one window.
// All charges are in cents; it is recomputed on demand, never persisted.
type Result struct {
	Retailer string
	Tariff   string
	Start    time.Time
	End      time.Time

	SupplyCharge      float64
	ConsumptionCharge float64
	PeakCharge        float64
	ShoulderCharge    float64
	OffPeakCharge     float64
	DemandCharge      float64

	// BilledDemandKW is demand after the off-season floor is applied.
	BilledDemandKW float64
	PeakSeason     bool

	TotalExGST  float64
	TotalIncGST float64
}
