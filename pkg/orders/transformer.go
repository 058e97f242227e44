// Package orders turns recently created marketplace orders into one webhook
// payload per order and delivers them.
package orders

import (
	"fmt"
	"sort"
	"time"
	_ "time/tzdata"

	"github.com/plugup/shipment-tracking/pkg/common/logger"
	"github.com/plugup/shipment-tracking/pkg/tracking"
	"github.com/plugup/shipment-tracking/pkg/warehouse"
)

const cltLayout = "2006-01-02T15:04:05-07:00"

// Chile is the zone order dates are reported in.
var Chile = mustLoadLocation("America/Santiago")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

type SKU struct {
	Quantity           int    `json:"quantity"`
	Name               string `json:"name"`
	MarketPlaceMatchID string `json:"market_place_match_id"`
	OrderItemID        string `json:"order_item_id"`
}

// Payload is the webhook body for one order. SKU is keyed by seller SKU.
type Payload struct {
	Order               string         `json:"order"`
	ShippingID          string         `json:"shipping_id"`
	Status              string         `json:"status"`
	ShippingStatus      string         `json:"shipping_status"`
	LogisticType        string         `json:"logistic_type"`
	MarketPlace         string         `json:"market_place"`
	OrderCreatedAt      string         `json:"order_created_at"`
	ShippingPromiseDate *string        `json:"shipping_promise_date"`
	SKU                 map[string]SKU `json:"sku"`
}

// FormatCLT renders t in Chile time with second precision and a numeric
// offset.
func FormatCLT(t time.Time) string {
	return t.In(Chile).Truncate(time.Second).Format(cltLayout)
}

// WallClock reads a timestamp scanned from a column without time zone as
// Chile wall time. Drivers return those values located in time.UTC, while
// timestamptz values come back in time.Local or a fixed zone and are kept
// as instants.
func WallClock(t time.Time) time.Time {
	if t.Location() != time.UTC {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), Chile)
}

// Transform groups item rows by order id, in ascending id order. The first
// row of each group supplies the order level fields. Orders that cannot be
// built are dropped and reported in errs.
func Transform(rows []warehouse.OrderItemRow) (payloads []Payload, errs []string) {
	groups := make(map[string][]warehouse.OrderItemRow)
	for _, row := range rows {
		groups[row.OrderID] = append(groups[row.OrderID], row)
	}
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		group := groups[id]
		p, err := buildPayload(id, group)
		if err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"marketplace": group[0].Marketplace,
				"order_id":    id,
			}).Error("Order transformation failed")
			errs = append(errs, fmt.Sprintf("Order %s (%s): %v", id, group[0].Marketplace, err))
			continue
		}
		payloads = append(payloads, p)
	}

	logger.Log.WithFields(map[string]interface{}{
		"rows":   len(rows),
		"orders": len(payloads),
		"errors": len(errs),
	}).Info("Orders transformed")
	return payloads, errs
}

func buildPayload(id string, group []warehouse.OrderItemRow) (Payload, error) {
	first := group[0]
	m, ok := tracking.ParseMarketplace(first.Marketplace)
	if !ok {
		return Payload{}, fmt.Errorf("unknown marketplace %q", first.Marketplace)
	}
	if first.OrderCreatedAt == nil || first.OrderCreatedAt.IsZero() {
		return Payload{}, fmt.Errorf("missing required date field: order_created_at")
	}

	p := Payload{
		Order:          id,
		ShippingID:     first.ShippingID,
		Status:         first.Status,
		ShippingStatus: first.ShippingStatus,
		LogisticType:   first.LogisticType,
		MarketPlace:    m.Code(),
		OrderCreatedAt: FormatCLT(WallClock(*first.OrderCreatedAt)),
		SKU:            make(map[string]SKU, len(group)),
	}
	if ts := first.ShippingPromiseDate; ts != nil && !ts.IsZero() {
		promise := FormatCLT(WallClock(*ts))
		p.ShippingPromiseDate = &promise
	} else {
		logger.Log.WithField("order_id", id).Debug("Order has no shipping promise date")
	}

	for _, row := range group {
		p.SKU[row.SellerSKU] = SKU{
			Quantity:           row.Quantity,
			Name:               row.SKUName,
			MarketPlaceMatchID: row.MarketplaceMatchID,
			OrderItemID:        row.OrderItemID,
		}
	}
	return p, nil
}
