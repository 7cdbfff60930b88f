// Package tracer configures OpenTelemetry tracing for wsnap.
//
// Init installs a global tracer provider. With Stdout enabled, spans are
// batched to a pretty-printed stdout exporter; otherwise spans are
// recorded but not exported. StartSpan is a thin helper over the global
// provider.
package tracer
