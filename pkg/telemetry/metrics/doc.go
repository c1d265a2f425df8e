// Package metrics provides Prometheus metrics for Roxy.
//
// The Collector owns a dedicated Prometheus registry and groups the metrics
// by subsystem: gateway request metrics, probe sweep metrics, and selection
// metrics. All metrics share the configured namespace (default "roxy").
//
// Recording is safe for concurrent use and is a no-op when metrics are
// disabled in configuration, so call sites never need their own guard.
package metrics
