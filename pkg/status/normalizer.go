package status

import (
	"github.com/plugup/shipment-tracking/pkg/common/logger"
	"github.com/plugup/shipment-tracking/pkg/tracking"
)

// Normalizer is immutable after construction and safe for concurrent use.
type Normalizer struct {
	byMarketplace map[tracking.Marketplace]map[string]Status
	general       map[string]Status
}

// NewNormalizer flattens t into lookup maps. For general aliases listed
// under more than one status, the status earliest in All wins.
func NewNormalizer(t Table) (*Normalizer, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	n := &Normalizer{
		byMarketplace: make(map[tracking.Marketplace]map[string]Status),
		general:       make(map[string]Status),
	}
	for _, target := range All {
		for _, alias := range t.General[target] {
			key := fold(alias)
			if _, taken := n.general[key]; !taken {
				n.general[key] = target
			}
		}
	}
	for code, aliases := range t.Marketplaces {
		m, ok := tracking.ParseMarketplace(code)
		if !ok {
			logger.Log.WithField("marketplace", code).Warn("status table names unknown marketplace")
			continue
		}
		table := make(map[string]Status, len(aliases))
		for raw, target := range aliases {
			table[fold(raw)] = target
		}
		n.byMarketplace[m] = table
	}
	return n, nil
}

// Default returns a Normalizer over DefaultTable.
func Default() *Normalizer {
	n, err := NewNormalizer(DefaultTable())
	if err != nil {
		panic(err)
	}
	return n
}

// Normalize maps raw onto the canonical vocabulary: marketplace table
// first, then the general table, then Pending.
func (n *Normalizer) Normalize(m tracking.Marketplace, raw string) Status {
	key := fold(raw)
	if key == "" {
		return Pending
	}
	if s, ok := n.byMarketplace[m][key]; ok {
		return s
	}
	if s, ok := n.general[key]; ok {
		return s
	}
	logger.Log.WithFields(map[string]interface{}{
		"marketplace": m.Code(),
		"raw_status":  raw,
	}).Warn("Unmapped status, using pending")
	return Pending
}
