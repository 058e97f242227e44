package pipeline

import (
	"testing"
	"time"

	"github.com/plugup/shipment-tracking/pkg/company"
	"github.com/plugup/shipment-tracking/pkg/extract"
	"github.com/plugup/shipment-tracking/pkg/status"
	"github.com/plugup/shipment-tracking/pkg/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bamoID = "c12585ee-c8f4-4103-b7f0-37bd62401a65"

var asOf = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTransformer(t *testing.T) *Transformer {
	t.Helper()
	dir, err := company.NewDirectory(company.DefaultMapping())
	require.NoError(t, err)
	return NewTransformer(status.Default(), dir, 20*time.Minute)
}

func walmartRecord(id string, statuses ...string) tracking.RawOrderRecord {
	items := make([]tracking.Bag, len(statuses))
	for i, s := range statuses {
		items[i] = tracking.Bag{"status": s}
	}
	items[0]["tracking_number"] = " 1Z999 "
	return tracking.RawOrderRecord{
		MarketplaceOrderID: id,
		CompanyID:          "bamo_company",
		Marketplace:        tracking.WALM,
		ProcessedAt:        time.Date(2025, 3, 10, 8, 55, 0, 0, time.FixedZone("CLT", -3*3600)),
		Items:              items,
		ShippingInfo: tracking.Bag{
			"postal_address": map[string]interface{}{"city": "Austin", "state": "TX"},
		},
		EnrichmentStatus: tracking.EnrichmentComplete,
	}
}

func TestTransformBuildsCanonicalEvents(t *testing.T) {
	tr := newTransformer(t)
	events, stats := tr.Transform(asOf, []tracking.RawOrderRecord{walmartRecord("W-1", "Created", "Delivered")})

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "W-1", ev.MarketplaceOrderID)
	assert.Equal(t, "walm", ev.Marketplace)
	assert.Equal(t, bamoID, ev.CompanyID)
	assert.Equal(t, status.Delivered.String(), ev.EventStatus)
	assert.Equal(t, "2025-03-10T11:55:00Z", ev.EventTimestamp)
	assert.Equal(t, "1Z999", ev.TrackingNumber)
	assert.Equal(t, "Austin, TX", ev.EventLocation)
	assert.Equal(t, "Walmart Logistics", ev.CourierName)

	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Valid)
	assert.Zero(t, stats.TransformErrors)
}

func TestTransformCountsExclusionsAndErrors(t *testing.T) {
	tr := newTransformer(t)

	stale := walmartRecord("W-2", "Shipped")
	stale.ProcessedAt = asOf.Add(-time.Hour)

	partial := walmartRecord("W-3", "Shipped")
	partial.EnrichmentStatus = tracking.EnrichmentPartial

	unknownCompany := walmartRecord("W-4", "Shipped")
	unknownCompany.CompanyID = "acme"

	events, stats := tr.Transform(asOf, []tracking.RawOrderRecord{
		walmartRecord("W-1", "Shipped"),
		stale,
		partial,
		unknownCompany,
	})

	require.Len(t, events, 1)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Valid)
	assert.Equal(t, 1, stats.Excluded[extract.ReasonOutsideWindow])
	assert.Equal(t, 1, stats.Excluded[extract.ReasonEnrichment])
	assert.Equal(t, 1, stats.TransformErrors)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "W-4")
}

func TestTransformPassesThroughCompanyUUID(t *testing.T) {
	tr := newTransformer(t)
	rec := walmartRecord("W-1", "Delivered")
	rec.CompanyID = "7f6e2a57-1111-4c33-9d1e-0a2b3c4d5e6f"

	events, _ := tr.Transform(asOf, []tracking.RawOrderRecord{rec})
	require.Len(t, events, 1)
	assert.Equal(t, rec.CompanyID, events[0].CompanyID)
}

func TestTransformIsIdempotent(t *testing.T) {
	tr := newTransformer(t)
	records := []tracking.RawOrderRecord{walmartRecord("W-1", "Acknowledged", "Shipped", "Created")}

	once, _ := tr.Transform(asOf, records)
	again, _ := tr.Transform(asOf, records)
	assert.Equal(t, once, again)
}

func TestDeriveKeepsRawStatus(t *testing.T) {
	tr := newTransformer(t)
	rec := walmartRecord("W-1", "Delivered")

	ev, reason := tr.Derive(&rec, extract.Window{AsOf: asOf, Lookback: 20 * time.Minute})
	require.Equal(t, extract.Qualified, reason)
	assert.Equal(t, "Delivered", ev.EventStatus)
	assert.Equal(t, "delivered", ev.NormalizedStatus)
}

func TestTransformOmitsEmptyOptionalFields(t *testing.T) {
	tr := newTransformer(t)
	rec := walmartRecord("W-1", "Delivered")
	delete(rec.Items[0], "tracking_number")
	rec.ShippingInfo = tracking.Bag{}

	events, _ := tr.Transform(asOf, []tracking.RawOrderRecord{rec})
	require.Len(t, events, 1)
	assert.Empty(t, events[0].TrackingNumber)
	assert.Empty(t, events[0].EventLocation)
}
