// Package telemetry provides structured logging, Prometheus metrics and
// OpenTelemetry tracing for packdock. Components receive loggers
// explicitly; there is no process-wide mutable state beyond what the
// underlying libraries maintain themselves.
package telemetry
