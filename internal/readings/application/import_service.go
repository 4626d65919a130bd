package application

import (
	"context"
	"errors"
	"log"
	"time"

	"meterbill/internal/observability/metrics"
	readings "meterbill/internal/readings/domain"
)

// ImportResult reports what happened to one import batch.
type ImportResult struct {
	Accepted   int
	Duplicates int
	Rejected   int
}

// ImportService loads parsed readings into a meter's store. Parsing the
// source file is the caller's concern; this service only sees tuples.
type ImportService struct {
	repo   readings.Repository
	logger *log.Logger
}

// NewImportService constructs an ImportService.
func NewImportService(repo readings.Repository, logger *log.Logger) (*ImportService, error) {
	if repo == nil {
		return nil, errors.New("import service: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ImportService{repo: repo, logger: logger}, nil
}

// Import validates and stores a batch. Malformed readings are counted and
// skipped, never aborting the batch; re-imported readings count as
// duplicates and leave the store unchanged.
func (s *ImportService) Import(ctx context.Context, meterID string, batch []readings.Reading) (ImportResult, error) {
	var res ImportResult

	valid := make([]readings.Reading, 0, len(batch))
	for _, read := range batch {
		if err := read.Validate(); err != nil {
			res.Rejected++
			s.logger.Printf("import: meter=%s channel=%s start=%s rejected: %v",
				meterID, read.Channel, read.Start.Format(time.RFC3339), err)
			continue
		}
		valid = append(valid, read)
	}

	inserted, err := s.repo.Insert(ctx, meterID, valid)
	if err != nil {
		metrics.ImportResult(0, 0, res.Rejected, false)
		return res, err
	}
	res.Accepted = inserted
	res.Duplicates = len(valid) - inserted

	metrics.ImportResult(res.Accepted, res.Duplicates, res.Rejected, true)
	s.logger.Printf("import: meter=%s accepted=%d duplicates=%d rejected=%d",
		meterID, res.Accepted, res.Duplicates, res.Rejected)
	return res, nil
}

// DataRange reports the span of stored data, ok=false when empty.
func (s *ImportService) DataRange(ctx context.Context, meterID string) (first, last time.Time, ok bool, err error) {
	return s.repo.DataRange(ctx, meterID)
}

// DeleteMeter drops every reading held for a meter.
func (s *ImportService) DeleteMeter(ctx context.Context, meterID string) error {
	return s.repo.DeleteMeter(ctx, meterID)
}
