// Package tracing wraps OpenTelemetry for the memory facade. Spans are no-op
// until Init or InitWithExporter installs a provider.
package tracing
