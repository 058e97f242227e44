// Package tracking holds the marketplace order and tracking event types
// shared by extraction, normalization and delivery.
package tracking

import (
	"fmt"
	"strings"
	"time"
)

type Marketplace string

const (
	MELI Marketplace = "MELI"
	FALA Marketplace = "FALA"
	WALM Marketplace = "WALM"
	CENC Marketplace = "CENC"
)

// Marketplaces lists every supported marketplace in extraction order.
var Marketplaces = []Marketplace{MELI, FALA, WALM, CENC}

// ParseMarketplace accepts any casing and surrounding whitespace.
func ParseMarketplace(s string) (Marketplace, bool) {
	m := Marketplace(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MELI, FALA, WALM, CENC:
		return m, true
	}
	return "", false
}

// ParseMarketplaces parses a configured list, rejecting unknown codes.
func ParseMarketplaces(codes []string) ([]Marketplace, error) {
	out := make([]Marketplace, 0, len(codes))
	for _, code := range codes {
		m, ok := ParseMarketplace(code)
		if !ok {
			return nil, fmt.Errorf("unknown marketplace %q", code)
		}
		out = append(out, m)
	}
	return out, nil
}

// Code is the lowercase form used on the wire.
func (m Marketplace) Code() string {
	return strings.ToLower(string(m))
}

type EnrichmentStatus string

const (
	EnrichmentComplete EnrichmentStatus = "COMPLETE"
	EnrichmentPartial  EnrichmentStatus = "PARTIAL"
)

// Bag is one semi-structured field set as decoded from JSON.
type Bag = map[string]interface{}

// RawOrderRecord is the latest warehouse row for one marketplace order.
type RawOrderRecord struct {
	MarketplaceOrderID string
	CompanyID          string
	Marketplace        Marketplace
	ProcessedAt        time.Time
	Items              []Bag
	ShippingInfo       Bag
	BuyerInfo          Bag
	EnrichmentStatus   EnrichmentStatus
}

// DerivedTrackingEvent is the single event derived from one RawOrderRecord.
// EventStatus keeps the marketplace-native value; NormalizedStatus is the
// canonical one. Optional fields are empty when absent.
type DerivedTrackingEvent struct {
	MarketplaceOrderID string
	CompanyID          string
	Marketplace        Marketplace
	EventStatus        string
	NormalizedStatus   string
	EventTimestamp     time.Time
	EventLocation      string
	CourierName        string
	TrackingNumber     string
	Notes              string
}
