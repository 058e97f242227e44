// Package status defines the canonical shipment status vocabulary and maps
// marketplace status strings onto it.
package status

type Status string

const (
	Pending        Status = "pending"
	ReadyToShip    Status = "ready_to_ship"
	Dispatched     Status = "dispatched"
	InTransit      Status = "in_transit"
	OutForDelivery Status = "out_for_delivery"
	Delivered      Status = "delivered"
	DeliveryFailed Status = "delivery_failed"
	Cancelled      Status = "cancelled"
	Returned       Status = "returned"
)

// All is the canonical vocabulary in general-table precedence order.
// Dispatched precedes InTransit, so an alias listed under both resolves
// to Dispatched.
var All = []Status{
	Pending,
	ReadyToShip,
	Dispatched,
	InTransit,
	OutForDelivery,
	Delivered,
	DeliveryFailed,
	Cancelled,
	Returned,
}

func (s Status) Valid() bool {
	for _, c := range All {
		if c == s {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }
