package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/plugup/shipment-tracking/pkg/common/logger"
	"github.com/plugup/shipment-tracking/pkg/tracking"
	"gorm.io/gorm"
)

// OrderItemRow is one line item of a recently created marketplace order.
// Rows of the same order repeat the order level columns.
type OrderItemRow struct {
	OrderID             string     `gorm:"column:order_id"`
	Marketplace         string     `gorm:"column:marketplace"`
	ShippingID          string     `gorm:"column:shipping_id"`
	Status              string     `gorm:"column:status"`
	ShippingStatus      string     `gorm:"column:shipping_status"`
	LogisticType        string     `gorm:"column:logistic_type"`
	OrderCreatedAt      *time.Time `gorm:"column:order_created_at"`
	ShippingPromiseDate *time.Time `gorm:"column:shipping_promise_date"`
	SellerSKU           string     `gorm:"column:seller_sku"`
	Quantity            int        `gorm:"column:quantity"`
	SKUName             string     `gorm:"column:sku_name"`
	MarketplaceMatchID  string     `gorm:"column:market_place_match_id"`
	OrderItemID         string     `gorm:"column:order_item_id"`
}

type OrderItemReader struct {
	db    *gorm.DB
	table string
}

func NewOrderItemReader(db *gorm.DB, table string) (*OrderItemReader, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid order items table name %q", table)
	}
	return &OrderItemReader{db: db, table: table}, nil
}

// FetchRecentOrderItems returns the items of orders created at or after
// since, ordered by order and item.
func (r *OrderItemReader) FetchRecentOrderItems(ctx context.Context, marketplaces []tracking.Marketplace, since time.Time) ([]OrderItemRow, error) {
	if len(marketplaces) == 0 {
		return nil, nil
	}
	codes := make([]string, len(marketplaces))
	for i, m := range marketplaces {
		codes[i] = string(m)
	}

	query := fmt.Sprintf(`
SELECT order_id, marketplace, shipping_id, status, shipping_status,
       logistic_type, order_created_at, shipping_promise_date,
       seller_sku, quantity, sku_name, market_place_match_id, order_item_id
FROM %s
WHERE marketplace IN ? AND order_created_at >= ?
ORDER BY order_id, order_item_id`, r.table)

	var rows []OrderItemRow
	start := time.Now()
	if err := r.db.WithContext(ctx).Raw(query, codes, since.UTC()).Scan(&rows).Error; err != nil {
		logger.Log.WithError(err).Error("Warehouse order items query failed")
		return nil, fmt.Errorf("querying order items: %w", err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"rows_returned": len(rows),
		"marketplaces":  codes,
		"since":         since.UTC().Format(time.RFC3339),
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Info("Warehouse order items query completed")
	return rows, nil
}
