// Package metrics exposes Prometheus counters for the sync jobs and the
// tracking store.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WarehouseRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shipment_tracking",
			Subsystem: "warehouse",
			Name:      "records_total",
			Help:      "Warehouse rows read, by marketplace and outcome (parsed, malformed).",
		},
		[]string{"marketplace", "outcome"},
	)

	RecordsExcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shipment_tracking",
			Subsystem: "extract",
			Name:      "excluded_total",
			Help:      "Records that produced no tracking event, by marketplace and reason.",
		},
		[]string{"marketplace", "reason"},
	)

	EventsDerived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shipment_tracking",
			Subsystem: "extract",
			Name:      "events_total",
			Help:      "Tracking events derived, by marketplace and canonical status.",
		},
		[]string{"marketplace", "status"},
	)

	DispatchBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shipment_tracking",
			Subsystem: "dispatch",
			Name:      "batches_total",
			Help:      "Batches submitted to the tracking store, by outcome.",
		},
		[]string{"outcome"},
	)

	DispatchRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shipment_tracking",
			Subsystem: "dispatch",
			Name:      "retries_total",
			Help:      "Batch submission retries.",
		},
	)

	OrderWebhooks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shipment_tracking",
			Subsystem: "orders",
			Name:      "webhooks_total",
			Help:      "Order webhook deliveries, by outcome (success, failed).",
		},
		[]string{"outcome"},
	)

	OrderWebhookRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shipment_tracking",
			Subsystem: "orders",
			Name:      "webhook_retries_total",
			Help:      "Order webhook retries.",
		},
	)

	GateOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shipment_tracking",
			Subsystem: "store",
			Name:      "gate_outcomes_total",
			Help:      "Reconciliation decisions, by action.",
		},
		[]string{"action"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
