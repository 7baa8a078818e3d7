// Package prometheus renders engine metrics for Prometheus scrapes.
//
// [NewPrometheusExporter] accepts an [edgetill.Engine] and exposes an
// [net/http.Handler] that renders all engine counters and histograms in
// Prometheus text exposition format. Counter names are prefixed
// edgetill_*_total; the single histogram is
// edgetill_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount
//     the Handler.
//   - Mutate engine state.
package prometheus
