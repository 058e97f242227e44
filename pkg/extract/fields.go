package extract

import (
	"encoding/json"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/jmespath/go-jmespath"
	"github.com/plugup/shipment-tracking/pkg/tracking"
)

// Every accessor here degrades to "" or nil on missing or mistyped data.

func getString(v interface{}) string {
	var s string
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case json.Number:
		s = val.String()
	case fmt.Stringer:
		s = val.String()
	default:
		return ""
	}
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "null") {
		return ""
	}
	return s
}

func extractMap(value interface{}) tracking.Bag {
	if m, ok := value.(map[string]interface{}); ok {
		return m
	}
	return tracking.Bag{}
}

// values yields the non-empty key values of items in array order.
func values(items []tracking.Bag, key string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, item := range items {
			if v := getString(item[key]); v != "" {
				if !yield(v) {
					return
				}
			}
		}
	}
}

func first(seq iter.Seq[string]) string {
	for v := range seq {
		return v
	}
	return ""
}

func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// path is a JMESPath expression compiled once at package init.
type path struct {
	expr *jmespath.JMESPath
}

func mustPath(expr string) path {
	return path{expr: jmespath.MustCompile(expr)}
}

func (p path) str(doc interface{}) string {
	v, err := p.expr.Search(doc)
	if err != nil {
		return ""
	}
	return getString(v)
}

// document exposes a record to JMESPath with plain JSON container types.
func document(rec *tracking.RawOrderRecord) map[string]interface{} {
	items := make([]interface{}, len(rec.Items))
	for i, item := range rec.Items {
		items[i] = item
	}
	return map[string]interface{}{
		"items":         items,
		"shipping_info": rec.ShippingInfo,
		"buyer_info":    rec.BuyerInfo,
	}
}

// locator resolves "City, Region" from a pair of paths.
type locator struct {
	city   path
	region path
}

func newLocator(city, region string) locator {
	return locator{city: mustPath(city), region: mustPath(region)}
}

func (l locator) locate(doc interface{}) string {
	city := l.city.str(doc)
	if city == "" {
		return ""
	}
	if region := l.region.str(doc); region != "" {
		return city + ", " + region
	}
	return city
}
