package apihttp

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	readingsapp "meterbill/internal/readings/application"
	readings "meterbill/internal/readings/domain"
	rollupapp "meterbill/internal/rollup/application"
	tariffapp "meterbill/internal/tariff/application"
	tariff "meterbill/internal/tariff/domain"
	tariffexport "meterbill/internal/tariff/interfaces"
	"meterbill/internal/tou"
)

const timeLayout = time.RFC3339

// ReadingsHandler serves raw reading imports, meter deletion and the
// data-range query.
type ReadingsHandler struct {
	importer *readingsapp.ImportService
}

// NewReadingsHandler constructs a ReadingsHandler.
func NewReadingsHandler(importer *readingsapp.ImportService) *ReadingsHandler {
	return &ReadingsHandler{importer: importer}
}

type importRequest struct {
	MeterID  string       `json:"meter_id"`
	Readings []readingRow `json:"readings"`
}

type readingRow struct {
	Channel string  `json:"channel"`
	Start   string  `json:"start"`
	End     string  `json:"end"`
	Value   float64 `json:"value"`
	Quality string  `json:"quality,omitempty"`
}

// ServeHTTP handles POST /api/v1/readings and GET /api/v1/readings/range.
func (h *ReadingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.importer == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodPost:
		h.importReadings(w, r)
	case http.MethodGet:
		h.dataRange(w, r)
	case http.MethodDelete:
		h.deleteMeter(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *ReadingsHandler) importReadings(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.MeterID == "" {
		http.Error(w, "meter_id is required", http.StatusBadRequest)
		return
	}

	batch := make([]readings.Reading, 0, len(req.Readings))
	for _, row := range req.Readings {
		start, ok := tou.ParseDate(row.Start)
		if !ok {
			http.Error(w, "unparseable start: "+row.Start, http.StatusBadRequest)
			return
		}
		end, ok := tou.ParseDate(row.End)
		if !ok {
			http.Error(w, "unparseable end: "+row.End, http.StatusBadRequest)
			return
		}
		batch = append(batch, readings.Reading{
			Channel:       row.Channel,
			Start:         start,
			End:           end,
			Value:         row.Value,
			QualityMethod: row.Quality,
		})
	}

	res, err := h.importer.Import(r.Context(), req.MeterID, batch)
	if err != nil {
		http.Error(w, "import error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{
		"accepted":   res.Accepted,
		"duplicates": res.Duplicates,
		"rejected":   res.Rejected,
	})
}

func (h *ReadingsHandler) dataRange(w http.ResponseWriter, r *http.Request) {
	meterID, ok := requireMeterID(w, r)
	if !ok {
		return
	}
	first, last, hasData, err := h.importer.DataRange(r.Context(), meterID)
	if err != nil {
		http.Error(w, "range query error", http.StatusInternalServerError)
		return
	}
	resp := struct {
		MeterID string `json:"meter_id"`
		HasData bool   `json:"has_data"`
		First   string `json:"first,omitempty"`
		Last    string `json:"last,omitempty"`
	}{MeterID: meterID, HasData: hasData}
	if hasData {
		resp.First = first.Format(timeLayout)
		resp.Last = last.Format(timeLayout)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *ReadingsHandler) deleteMeter(w http.ResponseWriter, r *http.Request) {
	meterID, ok := requireMeterID(w, r)
	if !ok {
		return
	}
	if err := h.importer.DeleteMeter(r.Context(), meterID); err != nil {
		http.Error(w, "delete error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshHandler recomputes rollups for a meter.
type RefreshHandler struct {
	svc *rollupapp.Service
}

// NewRefreshHandler constructs a RefreshHandler.
func NewRefreshHandler(svc *rollupapp.Service) *RefreshHandler {
	return &RefreshHandler{svc: svc}
}

// ServeHTTP handles POST /api/v1/refresh.
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.svc == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	meterID, ok := requireMeterID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Refresh(r.Context(), meterID); err != nil {
		http.Error(w, "refresh error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// TotalsHandler serves daily and monthly rollup queries.
type TotalsHandler struct {
	queries *rollupapp.Queries
}

// NewTotalsHandler constructs a TotalsHandler.
func NewTotalsHandler(queries *rollupapp.Queries) *TotalsHandler {
	return &TotalsHandler{queries: queries}
}

type dailyRow struct {
	Day           string  `json:"day"`
	LoadTotal     float64 `json:"load_total_wh"`
	ControlTotal  float64 `json:"control_total_wh"`
	ExportTotal   float64 `json:"export_total_wh"`
	LoadPeak1     float64 `json:"load_peak1_wh"`
	LoadShoulder1 float64 `json:"load_shoulder1_wh"`
	LoadPeak2     float64 `json:"load_peak2_wh"`
	LoadShoulder2 float64 `json:"load_shoulder2_wh"`
	Estimated     bool    `json:"estimated"`
}

type segmentRow struct {
	Day      string                          `json:"day"`
	Segments [rollupapp.SegmentCount]float64 `json:"segments_wh"`
}

type monthlyRow struct {
	Year          int     `json:"year"`
	Month         int     `json:"month"`
	NumDays       int     `json:"num_days"`
	DaysWithData  int     `json:"days_with_data"`
	LoadTotal     float64 `json:"load_total_wh"`
	ControlTotal  float64 `json:"control_total_wh"`
	ExportTotal   float64 `json:"export_total_wh"`
	LoadPeak1     float64 `json:"load_peak1_wh"`
	LoadShoulder1 float64 `json:"load_shoulder1_wh"`
	LoadPeak2     float64 `json:"load_peak2_wh"`
	LoadShoulder2 float64 `json:"load_shoulder2_wh"`
	DemandKW      float64 `json:"demand_kw"`
}

// ServeHTTP handles GET /api/v1/totals/daily and /api/v1/totals/monthly.
func (h *TotalsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.queries == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	switch r.URL.Path {
	case "/api/v1/totals/daily":
		h.daily(w, r)
	case "/api/v1/totals/monthly":
		h.monthly(w, r)
	case "/api/v1/totals/weekdays":
		h.weekdays(w, r)
	case "/api/v1/totals/segments":
		h.segments(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *TotalsHandler) daily(w http.ResponseWriter, r *http.Request) {
	meterID, from, to, ok := requireWindow(w, r)
	if !ok {
		return
	}
	days, err := h.queries.DailyTotals(r.Context(), meterID, from, to)
	if err != nil {
		http.Error(w, "daily query error", http.StatusInternalServerError)
		return
	}
	rows := make([]dailyRow, 0, len(days))
	for _, d := range days {
		rows = append(rows, dailyRow{
			Day:           d.Day.Format("2006-01-02"),
			LoadTotal:     d.LoadTotal,
			ControlTotal:  d.ControlTotal,
			ExportTotal:   d.ExportTotal,
			LoadPeak1:     d.LoadPeak1,
			LoadShoulder1: d.LoadShoulder1,
			LoadPeak2:     d.LoadPeak2,
			LoadShoulder2: d.LoadShoulder2,
			Estimated:     d.Estimated,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

func (h *TotalsHandler) monthly(w http.ResponseWriter, r *http.Request) {
	meterID, ok := requireMeterID(w, r)
	if !ok {
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		http.Error(w, "year is required", http.StatusBadRequest)
		return
	}
	upTo := time.December
	if m := r.URL.Query().Get("month"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil || n < 1 || n > 12 {
			http.Error(w, "month must be 1..12", http.StatusBadRequest)
			return
		}
		upTo = time.Month(n)
	}
	months, err := h.queries.MonthlyTotals(r.Context(), meterID, year, upTo)
	if err != nil {
		http.Error(w, "monthly query error", http.StatusInternalServerError)
		return
	}
	rows := make([]monthlyRow, 0, len(months))
	for _, m := range months {
		rows = append(rows, monthlyRow{
			Year:          m.Year,
			Month:         int(m.Month),
			NumDays:       m.NumDays,
			DaysWithData:  m.DaysWithData,
			LoadTotal:     m.LoadTotal,
			ControlTotal:  m.ControlTotal,
			ExportTotal:   m.ExportTotal,
			LoadPeak1:     m.LoadPeak1,
			LoadShoulder1: m.LoadShoulder1,
			LoadPeak2:     m.LoadPeak2,
			LoadShoulder2: m.LoadShoulder2,
			DemandKW:      m.Demand,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

func (h *TotalsHandler) weekdays(w http.ResponseWriter, r *http.Request) {
	meterID, from, to, ok := requireWindow(w, r)
	if !ok {
		return
	}
	averages, err := h.queries.WeekdayAverages(r.Context(), meterID, from, to)
	if err != nil {
		http.Error(w, "weekday query error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(averages)
}

func (h *TotalsHandler) segments(w http.ResponseWriter, r *http.Request) {
	meterID, from, to, ok := requireWindow(w, r)
	if !ok {
		return
	}
	segments, err := h.queries.DaySegments(r.Context(), meterID, from, to)
	if err != nil {
		http.Error(w, "segment query error", http.StatusInternalServerError)
		return
	}
	rows := make([]segmentRow, 0, len(segments))
	for day, segs := range segments {
		rows = append(rows, segmentRow{Day: day.Format("2006-01-02"), Segments: segs})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Day < rows[j].Day })
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

// BillHandler prices billing windows and serves the comparison table.
type BillHandler struct {
	billing *tariffapp.BillingService
}

// NewBillHandler constructs a BillHandler.
func NewBillHandler(billing *tariffapp.BillingService) *BillHandler {
	return &BillHandler{billing: billing}
}

type billRow struct {
	Retailer          string  `json:"retailer"`
	Tariff            string  `json:"tariff"`
	Start             string  `json:"start"`
	End               string  `json:"end"`
	SupplyCharge      float64 `json:"supply_charge_cents"`
	ConsumptionCharge float64 `json:"consumption_charge_cents"`
	PeakCharge        float64 `json:"peak_charge_cents"`
	ShoulderCharge    float64 `json:"shoulder_charge_cents"`
	OffPeakCharge     float64 `json:"offpeak_charge_cents"`
	DemandCharge      float64 `json:"demand_charge_cents"`
	BilledDemandKW    float64 `json:"billed_demand_kw"`
	PeakSeason        bool    `json:"peak_season"`
	TotalExGST        float64 `json:"total_ex_gst_cents"`
	TotalIncGST       float64 `json:"total_inc_gst_cents"`
}

func toBillRow(res tariff.Result) billRow {
	return billRow{
		Retailer:          res.Retailer,
		Tariff:            res.Tariff,
		Start:             res.Start.Format("2006-01-02"),
		End:               res.End.Format("2006-01-02"),
		SupplyCharge:      res.SupplyCharge,
		ConsumptionCharge: res.ConsumptionCharge,
		PeakCharge:        res.PeakCharge,
		ShoulderCharge:    res.ShoulderCharge,
		OffPeakCharge:     res.OffPeakCharge,
		DemandCharge:      res.DemandCharge,
		BilledDemandKW:    res.BilledDemandKW,
		PeakSeason:        res.PeakSeason,
		TotalExGST:        res.TotalExGST,
		TotalIncGST:       res.TotalIncGST,
	}
}

// ServeHTTP handles GET /api/v1/bill and /api/v1/bill/compare.
func (h *BillHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.billing == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	if r.URL.Path == "/api/v1/bill/compare" {
		h.compare(w, r)
		return
	}
	h.bill(w, r)
}

func (h *BillHandler) bill(w http.ResponseWriter, r *http.Request) {
	res, ok := priceFromQuery(w, r, h.billing)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toBillRow(res))
}

func (h *BillHandler) compare(w http.ResponseWriter, r *http.Request) {
	meterID, from, to, ok := requireWindow(w, r)
	if !ok {
		return
	}
	comparisons, err := h.billing.Compare(r.Context(), meterID, from, to)
	if err != nil {
		http.Error(w, "compare error", http.StatusInternalServerError)
		return
	}
	type compareRow struct {
		Retailer string   `json:"retailer"`
		Tariff   string   `json:"tariff"`
		Bill     *billRow `json:"bill,omitempty"`
		Error    string   `json:"error,omitempty"`
	}
	rows := make([]compareRow, 0, len(comparisons))
	for _, c := range comparisons {
		row := compareRow{Retailer: c.Retailer, Tariff: c.Tariff}
		if c.Err != nil {
			row.Error = c.Err.Error()
		} else {
			bill := toBillRow(c.Result)
			row.Bill = &bill
		}
		rows = append(rows, row)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

// ExportBillHandler serves bill downloads as PDF or XLSX.
type ExportBillHandler struct {
	billing *tariffapp.BillingService
}

// NewExportBillHandler constructs an ExportBillHandler.
func NewExportBillHandler(billing *tariffapp.BillingService) *ExportBillHandler {
	return &ExportBillHandler{billing: billing}
}

// ServeHTTP handles GET /api/v1/exports/bill.pdf and bill.xlsx.
func (h *ExportBillHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.billing == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	res, ok := priceFromQuery(w, r, h.billing)
	if !ok {
		return
	}
	meterID := r.URL.Query().Get("meter_id")

	switch r.URL.Path {
	case "/api/v1/exports/bill.pdf":
		data, err := tariffexport.BuildBillPDF(meterID, res)
		if err != nil {
			http.Error(w, "pdf render error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(data)
	case "/api/v1/exports/bill.xlsx":
		data, err := tariffexport.BuildBillXLSX(meterID, res)
		if err != nil {
			http.Error(w, "xlsx render error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		_, _ = w.Write(data)
	default:
		http.NotFound(w, r)
	}
}

// ExportReadingsCSVHandler serves raw readings as CSV.
type ExportReadingsCSVHandler struct {
	source rollupapp.ReadingSource
}

// NewExportReadingsCSVHandler constructs an ExportReadingsCSVHandler.
func NewExportReadingsCSVHandler(source rollupapp.ReadingSource) *ExportReadingsCSVHandler {
	return &ExportReadingsCSVHandler{source: source}
}

// ServeHTTP handles GET /api/v1/exports/readings.csv.
func (h *ExportReadingsCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.source == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	meterID, from, to, ok := requireWindow(w, r)
	if !ok {
		return
	}
	channels := readings.LoadChannels
	switch r.URL.Query().Get("channels") {
	case "", "load":
	case "controlled":
		channels = readings.ControlledChannels
	case "generation":
		channels = readings.GenerationChannels
	default:
		http.Error(w, "channels must be load, controlled or generation", http.StatusBadRequest)
		return
	}

	rows, err := h.source.Query(r.Context(), meterID, channels, from, to)
	if err != nil {
		http.Error(w, "readings query error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"meter_id", "channel", "start", "end", "value_wh", "quality"})
	for _, row := range rows {
		_ = writer.Write([]string{
			meterID,
			row.Channel,
			row.Start.Format(timeLayout),
			row.End.Format(timeLayout),
			strconv.FormatFloat(row.Value, 'f', -1, 64),
			row.QualityMethod,
		})
	}
	writer.Flush()
}

// priceFromQuery resolves the billing window from query params and prices
// it. Either year+month or from+to must be supplied.
func priceFromQuery(w http.ResponseWriter, r *http.Request, billing *tariffapp.BillingService) (tariff.Result, bool) {
	meterID, ok := requireMeterID(w, r)
	if !ok {
		return tariff.Result{}, false
	}
	retailer := r.URL.Query().Get("retailer")
	if retailer == "" {
		http.Error(w, "retailer is required", http.StatusBadRequest)
		return tariff.Result{}, false
	}
	name := r.URL.Query().Get("tariff")
	if name == "" {
		http.Error(w, "tariff is required", http.StatusBadRequest)
		return tariff.Result{}, false
	}

	var res tariff.Result
	var err error
	if y := r.URL.Query().Get("year"); y != "" {
		year, yerr := strconv.Atoi(y)
		month, merr := strconv.Atoi(r.URL.Query().Get("month"))
		if yerr != nil || merr != nil || month < 1 || month > 12 {
			http.Error(w, "year and month are required", http.StatusBadRequest)
			return tariff.Result{}, false
		}
		res, err = billing.MonthlyBill(r.Context(), meterID, retailer, name, year, time.Month(month))
	} else {
		from, to, wok := requireRange(w, r)
		if !wok {
			return tariff.Result{}, false
		}
		res, err = billing.Bill(r.Context(), meterID, retailer, name, from, to)
	}
	if errors.Is(err, tariff.ErrUnknownTariff) || errors.Is(err, tariff.ErrInvalidPeriod) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return tariff.Result{}, false
	}
	if err != nil {
		http.Error(w, "billing error", http.StatusInternalServerError)
		return tariff.Result{}, false
	}
	return res, true
}

func requireMeterID(w http.ResponseWriter, r *http.Request) (string, bool) {
	meterID := r.URL.Query().Get("meter_id")
	if meterID == "" {
		http.Error(w, "meter_id is required", http.StatusBadRequest)
		return "", false
	}
	return meterID, true
}

func requireRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, ok := tou.ParseDate(r.URL.Query().Get("from"))
	if !ok {
		http.Error(w, "from is required", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	to, ok := tou.ParseDate(r.URL.Query().Get("to"))
	if !ok {
		http.Error(w, "to is required", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func requireWindow(w http.ResponseWriter, r *http.Request) (string, time.Time, time.Time, bool) {
	meterID, ok := requireMeterID(w, r)
	if !ok {
		return "", time.Time{}, time.Time{}, false
	}
	from, to, ok := requireRange(w, r)
	if !ok {
		return "", time.Time{}, time.Time{}, false
	}
	return meterID, from, to, true
}

