package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/plugup/shipment-tracking/pkg/common/logger"
	"github.com/plugup/shipment-tracking/pkg/common/models"
	"github.com/plugup/shipment-tracking/pkg/dispatch"
	"github.com/plugup/shipment-tracking/pkg/extract"
	"github.com/plugup/shipment-tracking/pkg/tracking"
	"github.com/plugup/shipment-tracking/pkg/warehouse"
)

const (
	RunCompleted = "completed"
	RunNoEvents  = "no_events"
	RunError     = "error"

	maxSummaryErrors = 10
)

var ErrRunInProgress = errors.New("sync run already in progress")

// Source reads warehouse records processed at or after since.
type Source interface {
	FetchRecent(ctx context.Context, marketplaces []tracking.Marketplace, since time.Time) (*warehouse.Result, error)
}

// Sink delivers canonical events to the tracking store.
type Sink interface {
	CheckConnectivity(ctx context.Context) (string, error)
	Send(ctx context.Context, events []models.TrackingEvent) dispatch.Result
}

type RunSummary struct {
	Status           string                 `json:"status"`
	Message          string                 `json:"message,omitempty"`
	StartedAt        time.Time              `json:"started_at"`
	FinishedAt       time.Time              `json:"finished_at"`
	WarehouseRecords int                    `json:"warehouse_records"`
	MalformedRecords int                    `json:"malformed_records"`
	ValidEvents      int                    `json:"valid_events"`
	Excluded         map[extract.Reason]int `json:"excluded,omitempty"`
	TransformErrors  int                    `json:"transform_errors"`
	Connectivity     string                 `json:"connectivity_test,omitempty"`
	TotalEvents      int                    `json:"total_events"`
	Successful       int                    `json:"successful"`
	Failed           int                    `json:"failed"`
	Created          int                    `json:"created"`
	Updated          int                    `json:"updated"`
	Skipped          int                    `json:"skipped"`
	Errors           []string               `json:"errors,omitempty"`
}

type Service struct {
	source       Source
	transformer  *Transformer
	sink         Sink
	marketplaces []tracking.Marketplace
	lookback     time.Duration
	now          func() time.Time
	running      atomic.Bool
}

func NewService(source Source, transformer *Transformer, sink Sink, marketplaces []tracking.Marketplace, lookback time.Duration) *Service {
	return &Service{
		source:       source,
		transformer:  transformer,
		sink:         sink,
		marketplaces: marketplaces,
		lookback:     lookback,
		now:          time.Now,
	}
}

// Run executes one sync. It returns ErrRunInProgress without doing anything
// if another run is active. A non-nil summary is returned for every run
// that started, including failed ones.
func (s *Service) Run(ctx context.Context) (*RunSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	asOf := s.now().UTC()
	summary := &RunSummary{StartedAt: asOf}
	defer func() { summary.FinishedAt = s.now().UTC() }()

	logger.Log.WithField("marketplaces", s.marketplaces).Info("Shipment tracking sync started")

	result, err := s.source.FetchRecent(ctx, s.marketplaces, asOf.Add(-s.lookback))
	if err != nil {
		return s.fail(summary, fmt.Errorf("fetching warehouse records: %w", err))
	}
	summary.WarehouseRecords = len(result.Records) + len(result.Malformed)
	summary.MalformedRecords = len(result.Malformed)
	var errs []string
	for _, m := range result.Malformed {
		errs = append(errs, fmt.Sprintf("malformed %s record %s: %v", m.Marketplace, m.MarketplaceOrderID, m.Err))
	}

	events, stats := s.transformer.Transform(asOf, result.Records)
	summary.ValidEvents = stats.Valid
	summary.Excluded = stats.Excluded
	summary.TransformErrors = stats.TransformErrors
	errs = append(errs, stats.Errors...)

	if len(events) == 0 {
		summary.Status = RunNoEvents
		summary.Message = "No valid tracking events to process"
		summary.Errors = truncate(errs)
		logger.Log.WithField("warehouse_records", summary.WarehouseRecords).Info(summary.Message)
		return summary, nil
	}

	msg, err := s.sink.CheckConnectivity(ctx)
	if err != nil {
		summary.Errors = truncate(errs)
		return s.fail(summary, fmt.Errorf("tracking store connectivity test failed: %w", err))
	}
	summary.Connectivity = msg

	sent := s.sink.Send(ctx, events)
	summary.Status = RunCompleted
	summary.TotalEvents = sent.Total
	summary.Successful = sent.Successful
	summary.Failed = sent.Failed
	summary.Created = sent.Created
	summary.Updated = sent.Updated
	summary.Skipped = sent.Skipped
	summary.Errors = truncate(append(errs, sent.Errors...))

	logger.Log.WithFields(map[string]interface{}{
		"warehouse_records": summary.WarehouseRecords,
		"valid_events":      summary.ValidEvents,
		"total_events":      summary.TotalEvents,
		"successful":        summary.Successful,
		"failed":            summary.Failed,
		"created":           summary.Created,
		"updated":           summary.Updated,
		"skipped":           summary.Skipped,
	}).Info("Shipment tracking sync completed")
	return summary, nil
}

func (s *Service) fail(summary *RunSummary, err error) (*RunSummary, error) {
	summary.Status = RunError
	summary.Message = err.Error()
	logger.Log.WithError(err).Error("Shipment tracking sync failed")
	return summary, err
}

func truncate(errs []string) []string {
	if len(errs) > maxSummaryErrors {
		return errs[:maxSummaryErrors]
	}
	return errs
}
