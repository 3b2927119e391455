// Package otel publishes engine metrics through OpenTelemetry observable
// instruments. The caller owns the MeterProvider; [NewExporter] only
// registers instruments and a callback on the supplied Meter.
package otel
