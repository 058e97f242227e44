package warehouse

import (
	"context"
	"testing"
	"time"

	"github.com/plugup/shipment-tracking/pkg/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type enrichedOrder struct {
	ID                 uint `gorm:"primaryKey"`
	MarketplaceOrderID string
	CompanyID          string
	Marketplace        string
	ProcessedAt        time.Time
	Items              datatypes.JSON
	ShippingInfo       datatypes.JSON
	BuyerInfo          datatypes.JSON
	EnrichmentStatus   string
}

func (enrichedOrder) TableName() string { return "marketplace_orders_enriched" }

func TestDecodeParsesJSONColumns(t *testing.T) {
	result := Decode([]Row{{
		MarketplaceOrderID: "W-1",
		CompanyID:          "bamo_company",
		Marketplace:        "walm",
		ProcessedAt:        base,
		Items:              datatypes.JSON(`[{"status":"Shipped","tracking_number":"T1"}]`),
		ShippingInfo:       datatypes.JSON(`{"postal_address":{"city":"Austin","state":"TX"}}`),
		EnrichmentStatus:   "COMPLETE",
	}})

	require.Empty(t, result.Malformed)
	require.Len(t, result.Records, 1)
	rec := result.Records[0]
	assert.Equal(t, tracking.WALM, rec.Marketplace)
	assert.Equal(t, tracking.EnrichmentComplete, rec.EnrichmentStatus)
	require.Len(t, rec.Items, 1)
	assert.Equal(t, "Shipped", rec.Items[0]["status"])
	assert.Equal(t, "Austin", rec.ShippingInfo["postal_address"].(map[string]interface{})["city"])
	assert.Nil(t, rec.BuyerInfo)
}

func TestDecodeSetsAsideMalformedRows(t *testing.T) {
	result := Decode([]Row{
		{MarketplaceOrderID: "A", Marketplace: "walm", ProcessedAt: base, Items: datatypes.JSON(`{"not":"an array"}`)},
		{MarketplaceOrderID: "B", Marketplace: "ebay", ProcessedAt: base},
		{MarketplaceOrderID: "C", Marketplace: "fala", ProcessedAt: base, ShippingInfo: datatypes.JSON(`{broken`)},
		{MarketplaceOrderID: "", Marketplace: "fala", ProcessedAt: base},
		{MarketplaceOrderID: "E", Marketplace: "fala"},
		{MarketplaceOrderID: "F", Marketplace: "cenc", ProcessedAt: base, Items: datatypes.JSON(`null`)},
	})

	assert.Len(t, result.Malformed, 5)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "F", result.Records[0].MarketplaceOrderID)
	assert.Empty(t, result.Records[0].Items)
}

func TestLatestPerOrder(t *testing.T) {
	records := []tracking.RawOrderRecord{
		{MarketplaceOrderID: "1", Marketplace: tracking.WALM, ProcessedAt: base, CompanyID: "old"},
		{MarketplaceOrderID: "2", Marketplace: tracking.WALM, ProcessedAt: base},
		{MarketplaceOrderID: "1", Marketplace: tracking.WALM, ProcessedAt: base.Add(time.Minute), CompanyID: "new"},
		{MarketplaceOrderID: "1", Marketplace: tracking.FALA, ProcessedAt: base},
		{MarketplaceOrderID: "1", Marketplace: tracking.WALM, ProcessedAt: base.Add(-time.Minute), CompanyID: "older"},
	}

	latest := LatestPerOrder(records)
	require.Len(t, latest, 3)
	assert.Equal(t, "new", latest[0].CompanyID)
	assert.Equal(t, "2", latest[1].MarketplaceOrderID)
	assert.Equal(t, tracking.FALA, latest[2].Marketplace)
}

func TestNewReaderRejectsUnsafeTableName(t *testing.T) {
	_, err := NewReader(nil, "orders; DROP TABLE x")
	assert.Error(t, err)

	_, err = NewReader(nil, "analytics.marketplace_orders_enriched")
	assert.NoError(t, err)
}

func TestFetchRecentReturnsLatestRowsInWindow(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&enrichedOrder{}))

	rows := []enrichedOrder{
		{MarketplaceOrderID: "W-1", Marketplace: "WALM", ProcessedAt: base.Add(-10 * time.Minute), Items: datatypes.JSON(`[{"status":"Created"}]`), EnrichmentStatus: "COMPLETE"},
		{MarketplaceOrderID: "W-1", Marketplace: "WALM", ProcessedAt: base.Add(-5 * time.Minute), Items: datatypes.JSON(`[{"status":"Shipped"}]`), EnrichmentStatus: "COMPLETE"},
		{MarketplaceOrderID: "W-2", Marketplace: "WALM", ProcessedAt: base.Add(-2 * time.Hour), Items: datatypes.JSON(`[{"status":"Shipped"}]`), EnrichmentStatus: "COMPLETE"},
		{MarketplaceOrderID: "F-1", Marketplace: "FALA", ProcessedAt: base.Add(-time.Minute), Items: datatypes.JSON(`[{"status":"pending"}]`), EnrichmentStatus: "COMPLETE"},
	}
	require.NoError(t, db.Create(&rows).Error)

	reader, err := NewReader(db, "marketplace_orders_enriched")
	require.NoError(t, err)

	result, err := reader.FetchRecent(context.Background(), []tracking.Marketplace{tracking.WALM}, base.Add(-20*time.Minute))
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "W-1", result.Records[0].MarketplaceOrderID)
	assert.Equal(t, "Shipped", result.Records[0].Items[0]["status"])
}
