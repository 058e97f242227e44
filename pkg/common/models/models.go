package models

import "time"

// TrackingEndpointPath is where the tracking store accepts event batches.
const TrackingEndpointPath = "/functions/v1/process-shipment-tracking"

const (
	// EventTypeBatchFailed carries a batch the sync job could not deliver.
	EventTypeBatchFailed = "tracking.batch.failed"
	// EventTypeEventStored announces a created or updated tracking event.
	EventTypeEventStored = "tracking.event.stored"
)

// Event Bus envelope
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// TrackingEvent is the canonical record sent to the tracking store.
type TrackingEvent struct {
	MarketplaceOrderID string `json:"marketplace_order_id"`
	Marketplace        string `json:"marketplace"` // meli, fala, walm, cenc
	CompanyID          string `json:"company_id"`
	EventStatus        string `json:"event_status"`
	EventTimestamp     string `json:"event_timestamp"` // RFC3339
	EventLocation      string `json:"event_location,omitempty"`
	CourierName        string `json:"courier_name,omitempty"`
	TrackingNumber     string `json:"tracking_number,omitempty"`
	Notes              string `json:"notes,omitempty"`
}

type BatchRequest struct {
	Events []TrackingEvent `json:"events"`
}

const (
	BatchStatusSuccess        = "success"
	BatchStatusPartialSuccess = "partial_success"
	BatchStatusError          = "error"
)

// BatchResponse is the tracking store's answer for one batch.
type BatchResponse struct {
	Status    string       `json:"status"`
	Processed int          `json:"processed"`
	Created   int          `json:"created"`
	Updated   int          `json:"updated"`
	Skipped   int          `json:"skipped"`
	Errors    int          `json:"errors"`
	Details   BatchDetails `json:"details"`
}

type BatchDetails struct {
	CreatedIDs    []string `json:"created_ids"`
	UpdatedIDs    []string `json:"updated_ids"`
	SkippedOrders []string `json:"skipped_orders"`
	ErrorMessages []string `json:"error_messages"`
}

// RegisterOrderRequest creates the internal identity tracking events attach to.
type RegisterOrderRequest struct {
	Marketplace        string `json:"marketplace"`
	MarketplaceOrderID string `json:"marketplace_order_id"`
	CompanyID          string `json:"company_id"`
}

type RegisterOrderResponse struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}
