// Package infra holds the adapters of the simulator: zerolog logging,
// Prometheus, InfluxDB, MQTT and SQLite sinks, and Sentry reporting.
// These packages depend only on interfaces defined in the core packages.
package infra
