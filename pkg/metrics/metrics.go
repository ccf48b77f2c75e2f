// Package metrics exposes the Prometheus registry of the proxy inspector.
// All metrics are defined in their respective packages (transport, batch,
// run, history, archive) and registered via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the inspector.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads the metrics registered in Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Transport Metrics (pkg/transport):
//   - proxy_inspector_requests_total{status} (Counter): Requests by response status, "error" when none
//   - proxy_inspector_request_duration_seconds (Histogram): Round trip plus body read
//   - proxy_inspector_transport_errors_total{class} (Counter): Failures by class (dns, tls, timeout, connection, protocol, invalid_request)
//
// Batch Metrics (pkg/batch):
//   - proxy_inspector_batches_in_flight (Gauge): Batches currently executing
//   - proxy_inspector_batch_duration_seconds (Histogram): Wall time of one batch
//   - proxy_inspector_batch_request_failures_total (Counter): Requests recorded as failures
//
// Run Metrics (pkg/run):
//   - proxy_inspector_runs_dispatched_total (Counter): Runs dispatched
//   - proxy_inspector_pending_batches (Gauge): Batches dispatched but not drained
//   - proxy_inspector_results_drained_total{outcome} (Counter): Drained results (response, failure)
//
// History Metrics (pkg/history):
//   - proxy_inspector_history_fetches_total{source, outcome} (Counter): Fetches by source and outcome
//   - proxy_inspector_history_records_merged_total (Counter): Records merged into collections
//
// Archive Metrics (pkg/archive):
//   - proxy_inspector_archive_operations_total{operation, outcome} (Counter): Archive operations
//   - proxy_inspector_archive_bytes_written_total (Counter): Bytes of run documents written
//
// Example Prometheus Queries:
//
//   # Share of requests that could not be completed
//   sum(rate(proxy_inspector_results_drained_total{outcome="failure"}[5m])) /
//   sum(rate(proxy_inspector_results_drained_total[5m]))
//
//   # Unavailable history source
//   rate(proxy_inspector_history_fetches_total{outcome="unavailable"}[1m]) > 0
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(proxy_inspector_request_duration_seconds_bucket[5m]))
