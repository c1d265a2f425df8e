package config

import "time"

// Default values for configuration fields.
const (
	// Gateway defaults
	DefaultListenAddress   = "0.0.0.0:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultOutboundTimeout = 60 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Registry defaults
	DefaultRegistryDriver      = "sqlite"
	DefaultRegistryPath        = "data/roxy.db"
	DefaultRegistryMaxConns    = 10
	DefaultRegistryMinConns    = 2
	DefaultRegistryBusyTimeout = 5 * time.Second

	// Selector defaults
	DefaultMaxLatencyMS       = int64(300)
	DefaultRandomPoolSize     = 30
	DefaultBinancePoolSize    = 20
	DefaultBinanceExcludeCode = "JP"

	// Prober defaults
	DefaultProberMaxConcurrent = 50
	DefaultProbeTimeout        = 5 * time.Second
	DefaultSweepTimeout        = 20 * time.Second
	DefaultPingDeadline        = 3 * time.Second
	DefaultProberSchedule      = "@every 5m"

	// Ingest defaults
	DefaultIngestPortStart      = 10001
	DefaultIngestPortEnd        = 10100
	DefaultIngestMaxConcurrent  = 20
	DefaultIngestRequestTimeout = 15 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "roxy"
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Gateway defaults
	if cfg.Gateway.ListenAddress == "" {
		cfg.Gateway.ListenAddress = DefaultListenAddress
	}
	if cfg.Gateway.ReadTimeout == 0 {
		cfg.Gateway.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Gateway.WriteTimeout == 0 {
		cfg.Gateway.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Gateway.IdleTimeout == 0 {
		cfg.Gateway.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Gateway.ShutdownTimeout == 0 {
		cfg.Gateway.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Gateway.OutboundTimeout == 0 {
		cfg.Gateway.OutboundTimeout = DefaultOutboundTimeout
	}
	if cfg.Gateway.MaxHeaderBytes == 0 {
		cfg.Gateway.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Registry defaults
	if cfg.Registry.Driver == "" {
		cfg.Registry.Driver = DefaultRegistryDriver
	}
	if cfg.Registry.Path == "" {
		cfg.Registry.Path = DefaultRegistryPath
	}
	if cfg.Registry.MaxConns == 0 {
		cfg.Registry.MaxConns = DefaultRegistryMaxConns
	}
	if cfg.Registry.MinConns == 0 {
		cfg.Registry.MinConns = DefaultRegistryMinConns
	}
	if cfg.Registry.BusyTimeout == 0 {
		cfg.Registry.BusyTimeout = DefaultRegistryBusyTimeout
	}

	// Selector defaults
	if cfg.Selector.MaxLatencyMS == 0 {
		cfg.Selector.MaxLatencyMS = DefaultMaxLatencyMS
	}
	if cfg.Selector.RandomPoolSize == 0 {
		cfg.Selector.RandomPoolSize = DefaultRandomPoolSize
	}
	if cfg.Selector.BinancePoolSize == 0 {
		cfg.Selector.BinancePoolSize = DefaultBinancePoolSize
	}
	if cfg.Selector.BinanceExcludeCode == "" {
		cfg.Selector.BinanceExcludeCode = DefaultBinanceExcludeCode
	}

	// Prober defaults
	if cfg.Prober.MaxConcurrent == 0 {
		cfg.Prober.MaxConcurrent = DefaultProberMaxConcurrent
	}
	if cfg.Prober.ProbeTimeout == 0 {
		cfg.Prober.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Prober.SweepTimeout == 0 {
		cfg.Prober.SweepTimeout = DefaultSweepTimeout
	}
	if cfg.Prober.PingDeadline == 0 {
		cfg.Prober.PingDeadline = DefaultPingDeadline
	}
	if cfg.Prober.Schedule == "" {
		cfg.Prober.Schedule = DefaultProberSchedule
	}

	// Ingest defaults
	if cfg.Ingest.PortStart == 0 {
		cfg.Ingest.PortStart = DefaultIngestPortStart
	}
	if cfg.Ingest.PortEnd == 0 {
		cfg.Ingest.PortEnd = DefaultIngestPortEnd
	}
	if cfg.Ingest.MaxConcurrent == 0 {
		cfg.Ingest.MaxConcurrent = DefaultIngestMaxConcurrent
	}
	if cfg.Ingest.RequestTimeout == 0 {
		cfg.Ingest.RequestTimeout = DefaultIngestRequestTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// NewDefaultConfig returns a Config populated entirely with default values.
// Metrics are enabled by default.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}
