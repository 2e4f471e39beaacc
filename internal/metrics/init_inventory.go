package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initInventoryMetrics() {
	r.Devices = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netinv_devices",
			Help: "Number of devices in the inventory by type",
		},
		[]string{"type"},
	)

	r.OperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netinv_inventory_operations_total",
			Help: "Inventory operations by name and outcome",
		},
		[]string{"operation", "status"},
	)

	r.SuspensionsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "netinv_suspensions_total",
			Help: "Endpoints suspended, manually or by policy",
		},
	)

	r.PolicyRunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netinv_policy_runs_total",
			Help: "Traffic policy runs by trigger",
		},
		[]string{"trigger"},
	)

	r.TrafficMegabytes = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netinv_traffic_megabytes_total",
			Help: "Endpoint traffic recorded through the service in megabytes",
		},
		[]string{"direction"},
	)

	r.StoreOperationTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netinv_store_operations_total",
			Help: "Store loads and saves by outcome",
		},
		[]string{"operation", "status"},
	)

	r.StoreDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netinv_store_operation_duration_seconds",
			Help:    "Store operation latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"operation"},
	)

	r.EventSubscribers = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "netinv_event_subscribers",
			Help: "Connected server-sent event clients",
		},
	)
}
