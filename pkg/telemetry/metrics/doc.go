// Package metrics exposes Prometheus metrics for the proxy: request
// counts and latencies, upstream failures, upload outcomes, and
// credential pool gauges refreshed on a schedule.
package metrics
