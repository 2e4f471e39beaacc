package metrics

import (
	"time"
)

// Operation outcomes
const (
	StatusOK    = "ok"
	StatusError = "error"
)

func outcome(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordOperation counts an inventory operation by outcome
func (r *Registry) RecordOperation(operation string, err error) {
	r.OperationsTotal.WithLabelValues(operation, outcome(err)).Inc()
}

// RecordStoreOperation records a load or save
func (r *Registry) RecordStoreOperation(operation string, err error, duration time.Duration) {
	r.StoreOperationTotal.WithLabelValues(operation, outcome(err)).Inc()
	r.StoreDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTraffic adds recorded endpoint traffic
func (r *Registry) RecordTraffic(upMB, downMB float64) {
	r.TrafficMegabytes.WithLabelValues("up").Add(upMB)
	r.TrafficMegabytes.WithLabelValues("down").Add(downMB)
}

// RecordPolicyRun counts a policy run and the suspensions it caused
func (r *Registry) RecordPolicyRun(trigger string, suspended int) {
	r.PolicyRunsTotal.WithLabelValues(trigger).Inc()
	r.SuspensionsTotal.Add(float64(suspended))
}

// RecordSuspension counts one manual suspension
func (r *Registry) RecordSuspension() {
	r.SuspensionsTotal.Inc()
}

// SetDeviceCounts replaces the per-type device gauge
func (r *Registry) SetDeviceCounts(counts map[string]int) {
	for deviceType, n := range counts {
		r.Devices.WithLabelValues(deviceType).Set(float64(n))
	}
}
