// Package metrics documents the Prometheus metrics exposed by shopsync.
// All metrics are defined in their respective packages (paginator, retry,
// throttle, store) to maintain modularity and avoid circular dependencies.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by shopsync.
// All metrics are automatically registered via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Pagination Metrics (pkg/paginator):
//   - shopsync_requests_total (Counter): Page requests issued
//   - shopsync_items_fetched_total (Counter): Product records fetched
//   - shopsync_runs_aborted_total{reason} (Counter): Runs stopped early
//     (reason: cancelled, transport, graphql_errors, shape)
//
// Retry Metrics (pkg/retry):
//   - shopsync_retries_total{kind} (Counter): Retry attempts (kind: network, status)
//   - shopsync_retry_backoff_seconds{kind} (Histogram): Backoff durations
//   - shopsync_retry_exhausted_total{kind} (Counter): Runs out of attempts
//
// Throttle Metrics (pkg/throttle):
//   - shopsync_budget_available (Gauge): Last reported available cost budget
//   - shopsync_throttle_sleeps_total (Counter): Proactive budget sleeps
//   - shopsync_throttle_sleep_seconds_total (Counter): Seconds slept for budget
//
// Store Metrics (pkg/store):
//   - shopsync_store_products_saved_total (Counter): Products written to Redis
//   - shopsync_store_errors_total{operation} (Counter): Store operation errors
//
// Example Prometheus Queries:
//
//   # Retry rate per request
//   rate(shopsync_retries_total[5m]) / rate(shopsync_requests_total[5m])
//
//   # Fraction of wall time spent throttled
//   rate(shopsync_throttle_sleep_seconds_total[5m])
//
//   # Budget headroom
//   shopsync_budget_available
