// Package warehouse reads the latest enriched marketplace order rows.
package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/plugup/shipment-tracking/pkg/common/logger"
	"github.com/plugup/shipment-tracking/pkg/observability/metrics"
	"github.com/plugup/shipment-tracking/pkg/tracking"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Row is one warehouse record before its JSON columns are decoded.
type Row struct {
	MarketplaceOrderID string         `gorm:"column:marketplace_order_id"`
	CompanyID          string         `gorm:"column:company_id"`
	Marketplace        string         `gorm:"column:marketplace"`
	ProcessedAt        time.Time      `gorm:"column:processed_at"`
	Items              datatypes.JSON `gorm:"column:items"`
	ShippingInfo       datatypes.JSON `gorm:"column:shipping_info"`
	BuyerInfo          datatypes.JSON `gorm:"column:buyer_info"`
	EnrichmentStatus   string         `gorm:"column:enrichment_status"`
}

// Malformed describes a row that could not be decoded.
type Malformed struct {
	MarketplaceOrderID string
	Marketplace        string
	Err                error
}

type Result struct {
	Records   []tracking.RawOrderRecord
	Malformed []Malformed
}

type Reader struct {
	db    *gorm.DB
	table string
}

func NewReader(db *gorm.DB, table string) (*Reader, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid warehouse table name %q", table)
	}
	return &Reader{db: db, table: table}, nil
}

// FetchRecent returns the most recently processed row per marketplace order
// among rows processed at or after since.
func (r *Reader) FetchRecent(ctx context.Context, marketplaces []tracking.Marketplace, since time.Time) (*Result, error) {
	if len(marketplaces) == 0 {
		return &Result{}, nil
	}
	codes := make([]string, len(marketplaces))
	for i, m := range marketplaces {
		codes[i] = string(m)
	}

	query := fmt.Sprintf(`
SELECT marketplace_order_id, company_id, marketplace, processed_at,
       items, shipping_info, buyer_info, enrichment_status
FROM (
    SELECT t.*, ROW_NUMBER() OVER (
        PARTITION BY marketplace, marketplace_order_id
        ORDER BY processed_at DESC
    ) AS rn
    FROM %s t
    WHERE marketplace IN ? AND processed_at >= ?
) latest
WHERE rn = 1`, r.table)

	var rows []Row
	start := time.Now()
	if err := r.db.WithContext(ctx).Raw(query, codes, since.UTC()).Scan(&rows).Error; err != nil {
		logger.Log.WithError(err).Error("Warehouse tracking events query failed")
		return nil, fmt.Errorf("querying warehouse: %w", err)
	}

	result := Decode(rows)
	logger.Log.WithFields(map[string]interface{}{
		"rows_returned": len(rows),
		"malformed":     len(result.Malformed),
		"marketplaces":  codes,
		"since":         since.UTC().Format(time.RFC3339),
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Info("Warehouse tracking events query completed")
	return result, nil
}

// Decode converts rows, setting aside the ones that cannot be parsed, and
// keeps only the latest row per marketplace order.
func Decode(rows []Row) *Result {
	result := &Result{Records: make([]tracking.RawOrderRecord, 0, len(rows))}
	for _, row := range rows {
		rec, err := decodeRow(row)
		if err != nil {
			result.Malformed = append(result.Malformed, Malformed{
				MarketplaceOrderID: row.MarketplaceOrderID,
				Marketplace:        row.Marketplace,
				Err:                err,
			})
			metrics.WarehouseRecords.WithLabelValues(row.Marketplace, "malformed").Inc()
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"marketplace":          row.Marketplace,
				"marketplace_order_id": row.MarketplaceOrderID,
			}).Warn("Skipping malformed warehouse row")
			continue
		}
		metrics.WarehouseRecords.WithLabelValues(rec.Marketplace.Code(), "parsed").Inc()
		result.Records = append(result.Records, rec)
	}
	result.Records = LatestPerOrder(result.Records)
	return result
}

func decodeRow(row Row) (tracking.RawOrderRecord, error) {
	m, ok := tracking.ParseMarketplace(row.Marketplace)
	if !ok {
		return tracking.RawOrderRecord{}, fmt.Errorf("unknown marketplace %q", row.Marketplace)
	}
	if row.MarketplaceOrderID == "" {
		return tracking.RawOrderRecord{}, fmt.Errorf("missing marketplace_order_id")
	}
	if row.ProcessedAt.IsZero() {
		return tracking.RawOrderRecord{}, fmt.Errorf("missing processed_at")
	}

	rec := tracking.RawOrderRecord{
		MarketplaceOrderID: row.MarketplaceOrderID,
		CompanyID:          row.CompanyID,
		Marketplace:        m,
		ProcessedAt:        row.ProcessedAt.UTC(),
		EnrichmentStatus:   tracking.EnrichmentStatus(row.EnrichmentStatus),
	}
	if err := unmarshalOptional(row.Items, &rec.Items); err != nil {
		return tracking.RawOrderRecord{}, fmt.Errorf("decoding items: %w", err)
	}
	if err := unmarshalOptional(row.ShippingInfo, &rec.ShippingInfo); err != nil {
		return tracking.RawOrderRecord{}, fmt.Errorf("decoding shipping_info: %w", err)
	}
	if err := unmarshalOptional(row.BuyerInfo, &rec.BuyerInfo); err != nil {
		return tracking.RawOrderRecord{}, fmt.Errorf("decoding buyer_info: %w", err)
	}
	return rec, nil
}

func unmarshalOptional(raw datatypes.JSON, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// LatestPerOrder keeps the record with the greatest ProcessedAt for each
// marketplace order, preserving first-seen order.
func LatestPerOrder(records []tracking.RawOrderRecord) []tracking.RawOrderRecord {
	type key struct {
		marketplace tracking.Marketplace
		orderID     string
	}
	index := make(map[key]int, len(records))
	out := make([]tracking.RawOrderRecord, 0, len(records))
	for _, rec := range records {
		k := key{rec.Marketplace, rec.MarketplaceOrderID}
		if i, seen := index[k]; seen {
			if rec.ProcessedAt.After(out[i].ProcessedAt) {
				out[i] = rec
			}
			continue
		}
		index[k] = len(out)
		out = append(out, rec)
	}
	return out
}
