// Package metrics defines the Prometheus instrumentation for the weather
// station service: device ingest counters, connection gauges, session
// counters, and HTTP request metrics.
package metrics
