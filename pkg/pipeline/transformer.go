// Package pipeline turns warehouse order records into canonical tracking
// events and drives a sync run end to end.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/plugup/shipment-tracking/pkg/common/logger"
	"github.com/plugup/shipment-tracking/pkg/common/models"
	"github.com/plugup/shipment-tracking/pkg/extract"
	"github.com/plugup/shipment-tracking/pkg/observability/metrics"
	"github.com/plugup/shipment-tracking/pkg/status"
	"github.com/plugup/shipment-tracking/pkg/tracking"
)

// CompanyResolver maps a warehouse company name to a tenant id.
type CompanyResolver interface {
	Lookup(name string) (string, error)
}

// Stats counts what happened to every record of one Transform call.
type Stats struct {
	Total           int                    `json:"total_records"`
	Valid           int                    `json:"valid_events"`
	Excluded        map[extract.Reason]int `json:"excluded"`
	TransformErrors int                    `json:"transform_errors"`
	Errors          []string               `json:"-"`
}

func newStats() Stats {
	return Stats{Excluded: make(map[extract.Reason]int)}
}

type Transformer struct {
	normalizer *status.Normalizer
	companies  CompanyResolver
	lookback   time.Duration
}

func NewTransformer(normalizer *status.Normalizer, companies CompanyResolver, lookback time.Duration) *Transformer {
	return &Transformer{normalizer: normalizer, companies: companies, lookback: lookback}
}

// Derive runs extraction and normalization for one record.
func (t *Transformer) Derive(rec *tracking.RawOrderRecord, w extract.Window) (tracking.DerivedTrackingEvent, extract.Reason) {
	e, ok := extract.For(rec.Marketplace)
	if !ok {
		return tracking.DerivedTrackingEvent{}, extract.ReasonMarketplace
	}
	ev, reason := e.Extract(rec, w)
	if reason != extract.Qualified {
		return ev, reason
	}
	ev.NormalizedStatus = t.normalizer.Normalize(ev.Marketplace, ev.EventStatus).String()
	return ev, extract.Qualified
}

// Transform derives at most one canonical event per record. Records that
// fail company mapping or validation are counted and skipped.
func (t *Transformer) Transform(asOf time.Time, records []tracking.RawOrderRecord) ([]models.TrackingEvent, Stats) {
	stats := newStats()
	stats.Total = len(records)
	w := extract.Window{AsOf: asOf, Lookback: t.lookback}

	events := make([]models.TrackingEvent, 0, len(records))
	for i := range records {
		rec := &records[i]
		derived, reason := t.Derive(rec, w)
		if reason != extract.Qualified {
			stats.Excluded[reason]++
			metrics.RecordsExcluded.WithLabelValues(rec.Marketplace.Code(), string(reason)).Inc()
			continue
		}

		event, err := t.build(derived)
		if err != nil {
			stats.TransformErrors++
			stats.Errors = append(stats.Errors, err.Error())
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"marketplace":          rec.Marketplace.Code(),
				"marketplace_order_id": rec.MarketplaceOrderID,
			}).Error("Event transformation failed")
			continue
		}
		metrics.EventsDerived.WithLabelValues(event.Marketplace, event.EventStatus).Inc()
		events = append(events, event)
	}
	stats.Valid = len(events)

	logger.Log.WithFields(map[string]interface{}{
		"total_records":    stats.Total,
		"valid_events":     stats.Valid,
		"excluded":         stats.Excluded,
		"transform_errors": stats.TransformErrors,
	}).Info("Tracking events transformation completed")

	return events, stats
}

func (t *Transformer) build(ev tracking.DerivedTrackingEvent) (models.TrackingEvent, error) {
	if err := validateRequired(ev); err != nil {
		return models.TrackingEvent{}, err
	}
	companyID, err := t.companies.Lookup(ev.CompanyID)
	if err != nil {
		return models.TrackingEvent{}, fmt.Errorf("company mapping error for order %s: %w", ev.MarketplaceOrderID, err)
	}

	return models.TrackingEvent{
		MarketplaceOrderID: strings.TrimSpace(ev.MarketplaceOrderID),
		Marketplace:        ev.Marketplace.Code(),
		CompanyID:          companyID,
		EventStatus:        ev.NormalizedStatus,
		EventTimestamp:     FormatTimestamp(ev.EventTimestamp),
		EventLocation:      strings.TrimSpace(ev.EventLocation),
		CourierName:        strings.TrimSpace(ev.CourierName),
		TrackingNumber:     strings.TrimSpace(ev.TrackingNumber),
		Notes:              strings.TrimSpace(ev.Notes),
	}, nil
}

func validateRequired(ev tracking.DerivedTrackingEvent) error {
	missing := func(field string) error {
		return fmt.Errorf("missing required field %q for order %q", field, ev.MarketplaceOrderID)
	}
	switch {
	case strings.TrimSpace(ev.MarketplaceOrderID) == "":
		return missing("marketplace_order_id")
	case ev.Marketplace == "":
		return missing("marketplace")
	case strings.TrimSpace(ev.CompanyID) == "":
		return missing("company_id")
	case ev.NormalizedStatus == "":
		return missing("event_status")
	case ev.EventTimestamp.IsZero():
		return missing("event_timestamp")
	}
	return nil
}

// FormatTimestamp renders t as RFC3339 in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
