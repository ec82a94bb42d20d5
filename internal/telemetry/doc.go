// Package telemetry provides OpenTelemetry initialization for the recipe
// wizard: OTLP HTTP export of traces and logs, and a Prometheus-backed meter
// provider whose handler is mounted at /metrics.
package telemetry
