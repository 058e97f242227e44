package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the gorm-backed Store. The database must be opened with
// TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Order{}, &StoredEvent{})
}

func (r *Repository) FindOrder(ctx context.Context, marketplace, marketplaceOrderID string) (*Order, error) {
	var order Order
	err := r.db.WithContext(ctx).
		Where("marketplace = ? AND marketplace_order_id = ?", marketplace, marketplaceOrderID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// RegisterOrder returns the existing order for the marketplace identity or
// creates it. The bool reports whether a row was created.
func (r *Repository) RegisterOrder(ctx context.Context, order Order) (*Order, bool, error) {
	existing, err := r.FindOrder(ctx, order.Marketplace, order.MarketplaceOrderID)
	switch {
	case err == nil:
		return checkTenant(existing, order.CompanyID)
	case !errors.Is(err, ErrOrderNotFound):
		return nil, false, err
	}

	order.ID = uuid.New().String()
	order.CreatedAt = time.Now().UTC()
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, err
		}
		// lost the race to a concurrent registration
		existing, err := r.FindOrder(ctx, order.Marketplace, order.MarketplaceOrderID)
		if err != nil {
			return nil, false, err
		}
		return checkTenant(existing, order.CompanyID)
	}
	return &order, true, nil
}

func checkTenant(existing *Order, companyID string) (*Order, bool, error) {
	if !strings.EqualFold(existing.CompanyID, companyID) {
		return nil, false, ErrTenantMismatch
	}
	return existing, false, nil
}

func (r *Repository) FindEvent(ctx context.Context, key EventKey) (*StoredEvent, error) {
	var ev StoredEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND event_status = ? AND event_timestamp = ?",
			key.OrderID, key.EventStatus, key.EventTimestamp.UTC()).
		First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *Repository) CreateEvent(ctx context.Context, ev *StoredEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	ev.EventTimestamp = ev.EventTimestamp.UTC()
	ev.ReceivedAt = ev.ReceivedAt.UTC()
	ev.CreatedAt = ev.ReceivedAt
	err := r.db.WithContext(ctx).Create(ev).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEvent
	}
	return err
}

// UpdateEvent touches only the non-empty mutable fields and received_at.
func (r *Repository) UpdateEvent(ctx context.Context, id string, fields Mutable, receivedAt time.Time) error {
	updates := map[string]interface{}{"received_at": receivedAt.UTC()}
	if fields.EventLocation != "" {
		updates["event_location"] = fields.EventLocation
	}
	if fields.CourierName != "" {
		updates["courier_name"] = fields.CourierName
	}
	if fields.TrackingNumber != "" {
		updates["tracking_number"] = fields.TrackingNumber
	}
	if fields.Notes != "" {
		updates["notes"] = fields.Notes
	}

	result := r.db.WithContext(ctx).Model(&StoredEvent{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}
