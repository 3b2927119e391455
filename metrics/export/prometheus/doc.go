// Package prometheus renders engine counters and the authentication latency
// histogram in the Prometheus text format. Mount [Exporter.Handler] at
// /metrics; nothing is registered globally.
package prometheus
