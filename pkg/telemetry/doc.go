// Package telemetry provides observability for Roxy.
//
// # Components
//
//   - metrics: Prometheus metrics collection for the gateway, prober, and
//     selector, served on the gateway's metrics path
//   - health: liveness and readiness endpoints backed by component checks
//
// Structured logging uses log/slog directly; the run command installs the
// process-wide handler from configuration and each component tags its
// logger with a "component" attribute.
package telemetry
