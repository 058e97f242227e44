// Package extract derives one tracking event per marketplace order from the
// order's semi-structured sub-unit and shipping data.
package extract

import (
	"slices"
	"strings"
	"time"

	"github.com/plugup/shipment-tracking/pkg/tracking"
)

// Reason says why a record produced no event. Qualified means it did.
type Reason string

const (
	Qualified           Reason = ""
	ReasonMarketplace   Reason = "marketplace_mismatch"
	ReasonOutsideWindow Reason = "outside_window"
	ReasonEnrichment    Reason = "enrichment_incomplete"
	ReasonNoItems       Reason = "no_items"
	ReasonNoStatus      Reason = "no_actionable_status"
)

// Window is the trailing lookback ending at AsOf. A non-positive Lookback
// accepts every timestamp.
type Window struct {
	AsOf     time.Time
	Lookback time.Duration
}

func (w Window) Contains(t time.Time) bool {
	if w.Lookback <= 0 {
		return true
	}
	return !t.Before(w.AsOf.Add(-w.Lookback))
}

// Extractor derives at most one event from a record of its marketplace.
// Implementations are stateless and safe for concurrent use.
type Extractor interface {
	Marketplace() tracking.Marketplace
	Extract(rec *tracking.RawOrderRecord, w Window) (tracking.DerivedTrackingEvent, Reason)
}

var registry = map[tracking.Marketplace]Extractor{
	tracking.MELI: MercadoLibre{},
	tracking.FALA: Falabella{},
	tracking.WALM: Walmart{},
	tracking.CENC: Cencosud{},
}

// For returns the extractor registered for m.
func For(m tracking.Marketplace) (Extractor, bool) {
	e, ok := registry[m]
	return e, ok
}

// profile holds the qualification rules every extractor shares.
type profile struct {
	marketplace  tracking.Marketplace
	enrichment   []tracking.EnrichmentStatus
	requireItems bool
	unknown      string
}

func (p profile) qualify(rec *tracking.RawOrderRecord, w Window) Reason {
	switch {
	case rec.Marketplace != p.marketplace:
		return ReasonMarketplace
	case !w.Contains(rec.ProcessedAt):
		return ReasonOutsideWindow
	case !slices.Contains(p.enrichment, rec.EnrichmentStatus):
		return ReasonEnrichment
	case p.requireItems && len(rec.Items) == 0:
		return ReasonNoItems
	}
	return Qualified
}

// derived is what a marketplace rule resolves from one record.
type derived struct {
	status   string
	tracking string
	courier  string
	location string
	notes    string
}

func (p profile) finish(rec *tracking.RawOrderRecord, d derived) (tracking.DerivedTrackingEvent, Reason) {
	s := strings.TrimSpace(d.status)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, p.unknown) {
		return tracking.DerivedTrackingEvent{}, ReasonNoStatus
	}
	return tracking.DerivedTrackingEvent{
		MarketplaceOrderID: rec.MarketplaceOrderID,
		CompanyID:          rec.CompanyID,
		Marketplace:        rec.Marketplace,
		EventStatus:        s,
		EventTimestamp:     rec.ProcessedAt,
		EventLocation:      d.location,
		CourierName:        d.courier,
		TrackingNumber:     d.tracking,
		Notes:              d.notes,
	}, Qualified
}
