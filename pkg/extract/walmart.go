package extract

import "github.com/plugup/shipment-tracking/pkg/tracking"

const walmartFallbackCourier = "Walmart Logistics"

var (
	walmartProfile = profile{
		marketplace:  tracking.WALM,
		enrichment:   []tracking.EnrichmentStatus{tracking.EnrichmentComplete},
		requireItems: true,
		unknown:      "Unknown",
	}

	walmartTiers = tierList{tiers: []tier{
		{name: "Delivered", matches: []string{"delivered"}},
		{name: "Shipped", matches: []string{"shipped"}},
		{name: "Acknowledged", matches: []string{"acknowledged"}},
		{name: "Created", matches: []string{"created"}},
		{name: "Cancelled", matches: []string{"cancelled", "canceled", "cancelado"}},
		{name: "Unknown"},
	}}

	walmartLocation = newLocator("shipping_info.postal_address.city", "shipping_info.postal_address.state")
)

// Walmart reads order lines: items[].status, tracking_number, carrier and
// cancellation_reason.
type Walmart struct{}

func (Walmart) Marketplace() tracking.Marketplace { return tracking.WALM }

func (Walmart) Extract(rec *tracking.RawOrderRecord, w Window) (tracking.DerivedTrackingEvent, Reason) {
	if r := walmartProfile.qualify(rec, w); r != Qualified {
		return tracking.DerivedTrackingEvent{}, r
	}
	return walmartProfile.finish(rec, derived{
		status: walmartTiers.resolve(values(rec.Items, "status")),
		tracking: firstNonEmpty(
			first(values(rec.Items, "tracking_number")),
			getString(rec.ShippingInfo["tracking_number"]),
		),
		courier: firstNonEmpty(
			first(values(rec.Items, "carrier")),
			getString(rec.ShippingInfo["method_code"]),
			walmartFallbackCourier,
		),
		location: walmartLocation.locate(document(rec)),
		notes:    first(values(rec.Items, "cancellation_reason")),
	})
}
