package status

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Table is the hand-maintained alias data. General lists aliases per
// canonical status; Marketplaces maps lowercase marketplace codes to
// raw status -> canonical status.
type Table struct {
	General      map[Status][]string          `yaml:"general" json:"general"`
	Marketplaces map[string]map[string]Status `yaml:"marketplaces" json:"marketplaces"`
}

// DefaultTable returns the built-in alias data.
func DefaultTable() Table {
	return Table{
		General: map[Status][]string{
			Pending:        {"pending", "pendiente", "created", "acknowledged"},
			ReadyToShip:    {"ready_to_ship", "lista para despacho", "handling"},
			Dispatched:     {"shipped", "enviado", "en tránsito"},
			InTransit:      {"shipped", "en tránsito", "transit", "in_transit"},
			OutForDelivery: {"out_for_delivery", "en reparto"},
			Delivered:      {"delivered", "entregada", "entregado"},
			DeliveryFailed: {"not_delivered", "failed_delivery", "excepción", "delivery_failed"},
			Cancelled:      {"cancelled", "canceled", "cancelada", "cancelado"},
			Returned:       {"returned", "devuelto"},
		},
		Marketplaces: map[string]map[string]Status{
			"meli": {
				"pending":       Pending,
				"handling":      ReadyToShip,
				"ready_to_ship": ReadyToShip,
				"shipped":       Dispatched,
				"delivered":     Delivered,
				"not_delivered": DeliveryFailed,
				"cancelled":     Cancelled,
			},
			"fala": {
				"pending":       Pending,
				"ready_to_ship": ReadyToShip,
				"shipped":       Dispatched,
				"delivered":     Delivered,
				"canceled":      Cancelled,
				"returned":      Returned,
			},
			"walm": {
				"created":      Pending,
				"acknowledged": ReadyToShip,
				"shipped":      Dispatched,
				"delivered":    Delivered,
				"cancelled":    Cancelled,
			},
			"cenc": {
				"pendiente":           Pending,
				"lista para despacho": ReadyToShip,
				"enviado":             Dispatched,
				"en tránsito":         InTransit,
				"entregada":           Delivered,
				"entregado":           Delivered,
				"cancelada":           Cancelled,
				"cancelado":           Cancelled,
				"devuelto":            Returned,
			},
		},
	}
}

// LoadTable reads a YAML table. An empty path yields the default table.
func LoadTable(path string) (Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Table{}, fmt.Errorf("reading status table: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(content, &t); err != nil {
		return Table{}, fmt.Errorf("parsing status table: %w", err)
	}
	if len(t.General) == 0 && len(t.Marketplaces) == 0 {
		return Table{}, fmt.Errorf("status table %s is empty", path)
	}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Validate rejects targets outside the canonical vocabulary.
func (t Table) Validate() error {
	for target := range t.General {
		if !target.Valid() {
			return fmt.Errorf("invalid canonical status %q in general table", target)
		}
	}
	for marketplace, aliases := range t.Marketplaces {
		for raw, target := range aliases {
			if !target.Valid() {
				return fmt.Errorf("invalid canonical status %q in %s table for %q", target, marketplace, raw)
			}
		}
	}
	return nil
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
