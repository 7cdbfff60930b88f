// Package metric provides Prometheus metrics for wsnap.
//
// Metrics include:
//
//   - Save and restore outcomes and latency
//   - Snapshot store and remote mirror operation results
//   - Debounce scheduling (collapsed, fired, discarded triggers)
//   - Auto-heal patches by rule
//   - HTTP request counts and latency
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
