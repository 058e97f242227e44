// Package reconcile decides whether an incoming tracking event creates a new
// stored event, updates an existing one, or is skipped, and persists it.
package reconcile

import (
	"context"
	"errors"
	"time"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrEventNotFound   = errors.New("tracking event not found")
	ErrDuplicateEvent  = errors.New("tracking event already exists")
	ErrTenantMismatch  = errors.New("order belongs to a different company")
	ErrLockNotAcquired = errors.New("lock not acquired")
)

// Order is the internal identity tracking events attach to.
type Order struct {
	ID                 string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CompanyID          string    `gorm:"type:varchar(64);not null;index" json:"company_id"`
	Marketplace        string    `gorm:"type:varchar(8);not null;uniqueIndex:idx_orders_marketplace_order" json:"marketplace"`
	MarketplaceOrderID string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_orders_marketplace_order" json:"marketplace_order_id"`
	CreatedAt          time.Time `json:"created_at"`
}

func (Order) TableName() string { return "orders" }

// StoredEvent is one persisted tracking event. OrderID, EventStatus and
// EventTimestamp identify it and never change after creation.
type StoredEvent struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID        string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_tracking_event_identity" json:"order_id"`
	EventStatus    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_tracking_event_identity" json:"event_status"`
	EventTimestamp time.Time `gorm:"not null;uniqueIndex:idx_tracking_event_identity" json:"event_timestamp"`
	EventLocation  string    `json:"event_location,omitempty"`
	CourierName    string    `json:"courier_name,omitempty"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
	CreatedAt      time.Time `json:"created_at"`
}

func (StoredEvent) TableName() string { return "shipment_tracking_events" }

type EventKey struct {
	OrderID        string
	EventStatus    string
	EventTimestamp time.Time
}

// Mutable holds the fields an update may change. Empty values leave the
// stored value in place.
type Mutable struct {
	EventLocation  string
	CourierName    string
	TrackingNumber string
	Notes          string
}

func (m Mutable) apply(ev *StoredEvent) {
	if m.EventLocation != "" {
		ev.EventLocation = m.EventLocation
	}
	if m.CourierName != "" {
		ev.CourierName = m.CourierName
	}
	if m.TrackingNumber != "" {
		ev.TrackingNumber = m.TrackingNumber
	}
	if m.Notes != "" {
		ev.Notes = m.Notes
	}
}

type Store interface {
	FindOrder(ctx context.Context, marketplace, marketplaceOrderID string) (*Order, error)
	RegisterOrder(ctx context.Context, order Order) (*Order, bool, error)
	FindEvent(ctx context.Context, key EventKey) (*StoredEvent, error)
	CreateEvent(ctx context.Context, ev *StoredEvent) error
	UpdateEvent(ctx context.Context, id string, fields Mutable, receivedAt time.Time) error
}
