// Package metrics exposes Prometheus metrics for the inventory service and
// its HTTP API on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the application
type Registry struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Inventory Metrics
	Devices             *prometheus.GaugeVec
	OperationsTotal     *prometheus.CounterVec
	SuspensionsTotal    prometheus.Counter
	PolicyRunsTotal     *prometheus.CounterVec
	TrafficMegabytes    *prometheus.CounterVec
	StoreOperationTotal *prometheus.CounterVec
	StoreDuration       *prometheus.HistogramVec

	// Event Metrics
	EventSubscribers prometheus.Gauge

	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
	}

	r.initHTTPMetrics()
	r.initInventoryMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
