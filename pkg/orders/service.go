package orders

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/plugup/shipment-tracking/pkg/common/logger"
	"github.com/plugup/shipment-tracking/pkg/tracking"
	"github.com/plugup/shipment-tracking/pkg/warehouse"
)

const (
	RunCompleted = "completed"
	RunNoOrders  = "no_orders"
	RunError     = "error"

	maxSummaryErrors = 10
)

var ErrRunInProgress = errors.New("order sync run already in progress")

// Source reads the items of orders created at or after since.
type Source interface {
	FetchRecentOrderItems(ctx context.Context, marketplaces []tracking.Marketplace, since time.Time) ([]warehouse.OrderItemRow, error)
}

type Sink interface {
	Send(ctx context.Context, payloads []Payload) Result
}

type RunSummary struct {
	Status          string    `json:"status"`
	Message         string    `json:"message,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	OrderItems      int       `json:"order_items"`
	TransformErrors int       `json:"transform_errors"`
	TotalOrders     int       `json:"total_orders"`
	Successful      int       `json:"successful"`
	Failed          int       `json:"failed"`
	Errors          []string  `json:"errors,omitempty"`
}

type Service struct {
	source       Source
	sink         Sink
	marketplaces []tracking.Marketplace
	lookback     time.Duration
	now          func() time.Time
	running      atomic.Bool
}

func NewService(source Source, sink Sink, marketplaces []tracking.Marketplace, lookback time.Duration) *Service {
	return &Service{
		source:       source,
		sink:         sink,
		marketplaces: marketplaces,
		lookback:     lookback,
		now:          time.Now,
	}
}

// Run executes one order sync. Like the tracking sync it refuses to overlap
// and returns a summary for every run that started.
func (s *Service) Run(ctx context.Context) (*RunSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	asOf := s.now().UTC()
	summary := &RunSummary{StartedAt: asOf}
	defer func() { summary.FinishedAt = s.now().UTC() }()

	logger.Log.WithField("marketplaces", s.marketplaces).Info("Order sync started")

	rows, err := s.source.FetchRecentOrderItems(ctx, s.marketplaces, asOf.Add(-s.lookback))
	if err != nil {
		summary.Status = RunError
		summary.Message = fmt.Sprintf("fetching order items: %v", err)
		logger.Log.WithError(err).Error("Order sync failed")
		return summary, fmt.Errorf("fetching order items: %w", err)
	}
	summary.OrderItems = len(rows)

	payloads, errs := Transform(rows)
	summary.TransformErrors = len(errs)
	if len(payloads) == 0 {
		summary.Status = RunNoOrders
		summary.Message = "No orders to process"
		summary.Errors = truncate(errs)
		logger.Log.WithField("order_items", len(rows)).Info(summary.Message)
		return summary, nil
	}

	sent := s.sink.Send(ctx, payloads)
	summary.Status = RunCompleted
	summary.TotalOrders = sent.Total
	summary.Successful = sent.Successful
	summary.Failed = sent.Failed
	summary.Errors = truncate(append(errs, sent.Errors...))

	logger.Log.WithFields(map[string]interface{}{
		"order_items":  summary.OrderItems,
		"total_orders": summary.TotalOrders,
		"successful":   summary.Successful,
		"failed":       summary.Failed,
	}).Info("Order sync completed")
	return summary, nil
}

func truncate(errs []string) []string {
	if len(errs) > maxSummaryErrors {
		return errs[:maxSummaryErrors]
	}
	return errs
}
