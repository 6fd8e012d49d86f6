// Package metrics defines the per-step and per-session events emitted while
// charge events are simulated, and the sinks that record them. Sinks like
// PromSink and InfluxSink live in infra/metrics and register themselves in
// the sink registry; NewSink returns a MultiSink automatically when several
// sinks are configured.
package metrics
