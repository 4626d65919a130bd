package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	apihttp "meterbill/internal/api/http"
	"meterbill/internal/localstore"
	"meterbill/internal/observability/metrics"
	readingsapp "meterbill/internal/readings/application"
	readings "meterbill/internal/readings/domain"
	readingspg "meterbill/internal/readings/infrastructure/postgres"
	rollupapp "meterbill/internal/rollup/application"
	rollup "meterbill/internal/rollup/domain"
	rolluppg "meterbill/internal/rollup/infrastructure/postgres"
	tariffapp "meterbill/internal/tariff/application"
	"meterbill/internal/tariff/infrastructure/rates"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	metrics.Init(logger)

	readingRepo, dailyRepo, monthlyRepo, closeStores := openStores(cfg, logger)
	defer closeStores()

	rateStore, err := rates.LoadFile(cfg.RatesPath)
	if err != nil {
		logger.Fatalf("rates load error: %v", err)
	}

	importService, err := readingsapp.NewImportService(readingRepo, logger)
	if err != nil {
		logger.Fatalf("import service error: %v", err)
	}
	rollupService, err := rollupapp.NewService(readingRepo, dailyRepo, monthlyRepo, logger,
		rollupapp.WithBucketWidth(cfg.bucketWidth()))
	if err != nil {
		logger.Fatalf("rollup service error: %v", err)
	}
	queries, err := rollupapp.NewQueries(readingRepo, dailyRepo, monthlyRepo)
	if err != nil {
		logger.Fatalf("rollup queries error: %v", err)
	}
	billingService, err := tariffapp.NewBillingService(usageReader{daily: dailyRepo, monthly: monthlyRepo}, rateStore, logger)
	if err != nil {
		logger.Fatalf("billing service error: %v", err)
	}

	readingsHandler := apihttp.NewReadingsHandler(importService)
	billHandler := apihttp.NewBillHandler(billingService)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/readings", readingsHandler)
	mux.Handle("/api/v1/readings/range", readingsHandler)
	mux.Handle("/api/v1/refresh", apihttp.NewRefreshHandler(rollupService))
	mux.Handle("/api/v1/totals/", apihttp.NewTotalsHandler(queries))
	mux.Handle("/api/v1/bill", billHandler)
	mux.Handle("/api/v1/bill/compare", billHandler)
	mux.Handle("/api/v1/exports/bill.pdf", apihttp.NewExportBillHandler(billingService))
	mux.Handle("/api/v1/exports/bill.xlsx", apihttp.NewExportBillHandler(billingService))
	mux.Handle("/api/v1/exports/readings.csv", apihttp.NewExportReadingsCSVHandler(readingRepo))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

// openStores wires either Postgres or the per-meter local store,
// depending on whether database_url is set.
func openStores(cfg config, logger *log.Logger) (readings.Repository, rollup.DailyRepository, rollup.MonthlyRepository, func()) {
	if cfg.DatabaseURL == "" {
		store, err := localstore.Open(cfg.DataDir)
		if err != nil {
			logger.Fatalf("local store error: %v", err)
		}
		logger.Printf("using local store in %s", cfg.DataDir)
		return store, store, store, func() { _ = store.Close() }
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	readingRepo := readingspg.NewRepository(db)
	rollupRepo := rolluppg.NewRepository(db)
	ctx := context.Background()
	if err := readingRepo.EnsureSchema(ctx); err != nil {
		logger.Fatalf("readings schema error: %v", err)
	}
	if err := rollupRepo.EnsureSchema(ctx); err != nil {
		logger.Fatalf("rollup schema error: %v", err)
	}

	repo := pgReadingStore{Repository: readingRepo, rollups: rollupRepo}
	return repo, rollupRepo, rollupRepo, func() { _ = db.Close() }
}

// pgReadingStore extends the Postgres reading repository so deleting a
// meter also drops its rollup rows, matching the local store.
type pgReadingStore struct {
	*readingspg.Repository
	rollups *rolluppg.Repository
}

func (s pgReadingStore) DeleteMeter(ctx context.Context, meterID string) error {
	if err := s.Repository.DeleteMeter(ctx, meterID); err != nil {
		return err
	}
	return s.rollups.DeleteMeter(ctx, meterID)
}

// usageReader adapts the rollup repositories to the billing service.
type usageReader struct {
	daily   rollup.DailyRepository
	monthly rollup.MonthlyRepository
}

func (u usageReader) ListDaily(ctx context.Context, meterID string, start, end time.Time) ([]rollup.DailyTotal, error) {
	return u.daily.ListDaily(ctx, meterID, start, end)
}

func (u usageReader) GetMonthly(ctx context.Context, meterID string, year int, month time.Month) (rollup.MonthlyTotal, error) {
	return u.monthly.GetMonthly(ctx, meterID, year, month)
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
