package extract

import "github.com/plugup/shipment-tracking/pkg/tracking"

const mercadoEnviosCourier = "Mercado Envíos"

var (
	meliProfile = profile{
		marketplace: tracking.MELI,
		enrichment:  []tracking.EnrichmentStatus{tracking.EnrichmentComplete},
		unknown:     "unknown",
	}

	logisticTypeCouriers = map[string]string{
		"fulfillment":   "Mercado Envíos Full",
		"self_service":  "Mercado Envíos Flex",
		"cross_docking": "Mercado Envíos Colecta",
		"xd_drop_off":   "Mercado Envíos Centro",
		"drop_off":      "Mercado Envíos Drop Off",
	}

	// receiver_address carries city and state as {"id", "name"} objects,
	// older payloads as plain strings.
	meliLocation = newLocator(
		"shipping_info.receiver_address.city.name || shipping_info.receiver_address.city",
		"shipping_info.receiver_address.state.name || shipping_info.receiver_address.state",
	)
)

// MercadoLibre has no sub-unit array; shipping_info already carries the
// final shipment status.
type MercadoLibre struct{}

func (MercadoLibre) Marketplace() tracking.Marketplace { return tracking.MELI }

func (MercadoLibre) Extract(rec *tracking.RawOrderRecord, w Window) (tracking.DerivedTrackingEvent, Reason) {
	if r := meliProfile.qualify(rec, w); r != Qualified {
		return tracking.DerivedTrackingEvent{}, r
	}
	return meliProfile.finish(rec, derived{
		status:   getString(rec.ShippingInfo["status"]),
		tracking: getString(rec.ShippingInfo["tracking_number"]),
		courier:  meliCourier(getString(rec.ShippingInfo["logistic_type"])),
		location: meliLocation.locate(document(rec)),
		notes:    getString(rec.ShippingInfo["substatus"]),
	})
}

// meliCourier passes unmapped logistic types through unchanged.
func meliCourier(logisticType string) string {
	if logisticType == "" {
		return mercadoEnviosCourier
	}
	if name, ok := logisticTypeCouriers[logisticType]; ok {
		return name
	}
	return logisticType
}
