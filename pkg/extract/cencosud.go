package extract

import (
	"strings"

	"github.com/plugup/shipment-tracking/pkg/tracking"
)

var (
	// The upstream API cannot produce complete enrichment for CENC.
	cencosudProfile = profile{
		marketplace:  tracking.CENC,
		enrichment:   []tracking.EnrichmentStatus{tracking.EnrichmentComplete, tracking.EnrichmentPartial},
		requireItems: true,
		unknown:      "Desconocido",
	}

	// Substring matches; each phrase is whole so "entrega" alone never
	// reads as delivered.
	cencosudTiers = tierList{substring: true, tiers: []tier{
		{name: "Entregada", matches: []string{"entregada", "entregado", "delivered"}},
		{name: "En Tránsito", matches: []string{"en tránsito", "en transito", "in transit", "in_transit", "enviado", "shipped"}},
		{name: "Lista para Despacho", matches: []string{"lista para despacho", "listo para despacho", "ready to ship", "ready_to_ship"}},
		{name: "Cancelada", matches: []string{"cancelada", "cancelado", "cancelled", "canceled"}},
		{name: "Pendiente", matches: []string{"pendiente", "pending"}},
		{name: "Desconocido"},
	}}

	facilityCouriers = map[string]string{
		"1": "Dropshipping",
		"3": "Blue Express",
		"4": "Intangibles",
		"7": "Paris Fulfillment",
	}

	cencosudLocation = newLocator(
		"items[0].shipping_address.city",
		"items[0].shipping_address.region || items[0].shipping_address.state",
	)
)

// Cencosud reads fulfillment sub-orders: items[].status_name, tracking_number,
// carrier, facility_config_id, status_description and fulfillment_notes.
type Cencosud struct{}

func (Cencosud) Marketplace() tracking.Marketplace { return tracking.CENC }

func (Cencosud) Extract(rec *tracking.RawOrderRecord, w Window) (tracking.DerivedTrackingEvent, Reason) {
	if r := cencosudProfile.qualify(rec, w); r != Qualified {
		return tracking.DerivedTrackingEvent{}, r
	}
	return cencosudProfile.finish(rec, derived{
		status: cencosudTiers.resolve(values(rec.Items, "status_name")),
		tracking: firstNonEmpty(
			first(values(rec.Items, "tracking_number")),
			getString(rec.ShippingInfo["tracking_number"]),
		),
		courier:  cencosudCourier(rec.Items),
		location: cencosudLocation.locate(document(rec)),
		notes: firstNonEmpty(
			first(values(rec.Items, "status_description")),
			first(values(rec.Items, "fulfillment_notes")),
		),
	})
}

// cencosudCourier prefers an explicit carrier over the facility table.
// Unmapped facilities yield no courier.
// TODO: carrier-over-facility precedence still needs product confirmation.
func cencosudCourier(items []tracking.Bag) string {
	if carrier := first(values(items, "carrier")); carrier != "" {
		return carrier
	}
	for id := range values(items, "facility_config_id") {
		if name, ok := facilityCouriers[strings.TrimLeft(id, "0")]; ok {
			return name
		}
	}
	return ""
}
