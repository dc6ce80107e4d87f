// Package metrics provides Prometheus metrics for acme-alidns.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "acme_alidns"

// Operation label values.
const (
	OperationAdd    = "add"
	OperationDelete = "delete"
)

// Result label values.
const (
	ResultOK             = "ok"
	ResultAPIError       = "api_error"
	ResultTransportError = "transport_error"
	ResultError          = "error"
)

var (
	// BuildInfo exposes version information as labels on a constant 1 gauge.
	BuildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "build_info",
			Help:      "Build information for acme-alidns.",
		},
		[]string{"version", "go_version"},
	)

	// APIRequestsTotal counts Alidns API calls by action and result.
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "api_requests_total",
			Help:      "Number of Alidns API requests by action and result.",
		},
		[]string{"action", "result"},
	)

	// APIRequestDuration observes Alidns API round-trip latency.
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Latency of Alidns API requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	// OperationsTotal counts challenge record operations by result.
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Number of TXT record add/delete operations by result.",
		},
		[]string{"operation", "result"},
	)

	// PropagationDuration observes how long TXT records took to become visible.
	PropagationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "propagation_duration_seconds",
			Help:      "Time until a TXT record was served by every authoritative nameserver.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)
)

func init() {
	prometheus.MustRegister(
		BuildInfo,
		APIRequestsTotal,
		APIRequestDuration,
		OperationsTotal,
		PropagationDuration,
	)
}

// SetBuildInfo records the running version.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// ObserveAPIRequest records one API call.
func ObserveAPIRequest(action, result string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(action, result).Inc()
	APIRequestDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// ObserveOperation records the outcome of an add or delete operation.
func ObserveOperation(operation string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	OperationsTotal.WithLabelValues(operation, result).Inc()
}

// WriteTextfile writes all registered metrics to path in the Prometheus text
// format, for pickup by the node_exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
