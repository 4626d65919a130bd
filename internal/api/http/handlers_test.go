package apihttp

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	readingsapp "meterbill/internal/readings/application"
	readingsmem "meterbill/internal/readings/infrastructure/memory"
	rollupapp "meterbill/internal/rollup/application"
	rollupmem "meterbill/internal/rollup/infrastructure/memory"
	tariffapp "meterbill/internal/tariff/application"
	tariff "meterbill/internal/tariff/domain"
	"meterbill/internal/tariff/infrastructure/rates"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	logger := log.New(os.Stdout, "", log.LstdFlags)
	reads := readingsmem.NewRepository()
	rollups := rollupmem.NewRepository()

	importService, err := readingsapp.NewImportService(reads, logger)
	require.NoError(t, err)
	rollupService, err := rollupapp.NewService(reads, rollups, rollups, logger)
	require.NoError(t, err)
	queries, err := rollupapp.NewQueries(reads, rollups, rollups)
	require.NoError(t, err)

	store := rates.NewStore([]tariff.Rates{{
		Retailer:      "ergon",
		FinancialYear: 2016,
		Split:         tariff.SplitRegional,
		GeneralSupply: 98.5292,
		GeneralUsage:  27.0710,
	}})
	billing, err := tariffapp.NewBillingService(rollups, store, logger)
	require.NoError(t, err)

	readingsHandler := NewReadingsHandler(importService)
	billHandler := NewBillHandler(billing)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/readings", readingsHandler)
	mux.Handle("/api/v1/readings/range", readingsHandler)
	mux.Handle("/api/v1/refresh", NewRefreshHandler(rollupService))
	mux.Handle("/api/v1/totals/", NewTotalsHandler(queries))
	mux.Handle("/api/v1/bill", billHandler)
	mux.Handle("/api/v1/bill/compare", billHandler)
	mux.Handle("/api/v1/exports/readings.csv", NewExportReadingsCSVHandler(reads))
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func importBody() string {
	day := time.Date(2017, 6, 1, 0, 0, 0, 0, time.UTC)
	var rows []string
	for i := 0; i < 48; i++ {
		start := day.Add(time.Duration(i) * 30 * time.Minute)
		rows = append(rows, fmt.Sprintf(`{"channel":"E1","start":%q,"end":%q,"value":500}`,
			start.Format(time.RFC3339), start.Add(30*time.Minute).Format(time.RFC3339)))
	}
	return `{"meter_id":"NMI001","readings":[` + strings.Join(rows, ",") + `]}`
}

func TestEndToEnd_ImportRefreshQueryBill(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/readings", importBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var imported map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &imported))
	assert.Equal(t, 48, imported["accepted"])

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/readings/range?meter_id=NMI001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"has_data":true`)

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/refresh?meter_id=NMI001", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/totals/daily?meter_id=NMI001&from=2017-06-01&to=2017-06-02", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var days []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &days))
	require.Len(t, days, 1)
	assert.InDelta(t, 24000, days[0]["load_total_wh"].(float64), 1e-6)
	assert.InDelta(t, 0, days[0]["load_peak1_wh"].(float64), 1e-6)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/bill?meter_id=NMI001&retailer=ergon&tariff=general&year=2017&month=6", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var bill map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bill))
	assert.Equal(t, "ergon", bill["retailer"])
	assert.Greater(t, bill["total_inc_gst_cents"].(float64), 0.0)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/exports/readings.csv?meter_id=NMI001&from=2017-06-01&to=2017-06-02", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 49)
}

func TestHandlers_BadRequests(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/readings/range", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/totals/daily?meter_id=x&from=nope&to=2017-06-02", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/bill?meter_id=x&retailer=ergon&tariff=premium&year=2017&month=1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/readings", `{"meter_id":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodDelete, "/api/v1/refresh?meter_id=x", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandlers_Compare(t *testing.T) {
	mux := newTestMux(t)

	doJSON(t, mux, http.MethodPost, "/api/v1/readings", importBody())
	doJSON(t, mux, http.MethodPost, "/api/v1/refresh?meter_id=NMI001", "")

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/bill/compare?meter_id=NMI001&from=2017-06-01&to=2017-07-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	// One retailer, three tariffs.
	assert.Len(t, rows, 3)
}
