package extract

import "github.com/plugup/shipment-tracking/pkg/tracking"

const falabellaFallbackCourier = "Falabella Logistics"

var (
	falabellaProfile = profile{
		marketplace:  tracking.FALA,
		enrichment:   []tracking.EnrichmentStatus{tracking.EnrichmentComplete},
		requireItems: true,
		unknown:      "unknown",
	}

	falabellaTiers = tierList{tiers: []tier{
		{name: "delivered", matches: []string{"delivered"}},
		{name: "shipped", matches: []string{"shipped"}},
		{name: "ready_to_ship", matches: []string{"ready_to_ship"}},
		{name: "canceled", matches: []string{"cancelled", "canceled"}},
		{name: "pending", matches: []string{"pending"}},
		{name: "unknown"},
	}}

	falabellaLocation = newLocator("buyer_info.shipping_address.city", "buyer_info.shipping_address.region")
)

// Falabella reads order items: items[].status, tracking_code,
// shipment_provider, cancel_reason and reason_detail.
type Falabella struct{}

func (Falabella) Marketplace() tracking.Marketplace { return tracking.FALA }

func (Falabella) Extract(rec *tracking.RawOrderRecord, w Window) (tracking.DerivedTrackingEvent, Reason) {
	if r := falabellaProfile.qualify(rec, w); r != Qualified {
		return tracking.DerivedTrackingEvent{}, r
	}
	return falabellaProfile.finish(rec, derived{
		status: falabellaTiers.resolve(values(rec.Items, "status")),
		tracking: firstNonEmpty(
			first(values(rec.Items, "tracking_code")),
			getString(rec.ShippingInfo["tracking_code"]),
		),
		courier: firstNonEmpty(
			first(values(rec.Items, "shipment_provider")),
			getString(rec.ShippingInfo["shipping_provider"]),
			falabellaFallbackCourier,
		),
		location: falabellaLocation.locate(document(rec)),
		notes:    falabellaNotes(rec.Items),
	})
}

// falabellaNotes joins the reason pair of the first item that has either.
func falabellaNotes(items []tracking.Bag) string {
	for _, item := range items {
		reason := getString(item["cancel_reason"])
		detail := getString(item["reason_detail"])
		switch {
		case reason != "" && detail != "":
			return reason + " - " + detail
		case reason != "":
			return reason
		case detail != "":
			return detail
		}
	}
	return ""
}
