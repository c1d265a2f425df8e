package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = true
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention ROXY_SECTION_FIELD (e.g., ROXY_GATEWAY_LISTEN_ADDRESS) and
// always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables use the format ROXY_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Gateway overrides
	setString(&cfg.Gateway.ListenAddress, "ROXY_GATEWAY_LISTEN_ADDRESS")
	setDuration(&cfg.Gateway.ReadTimeout, "ROXY_GATEWAY_READ_TIMEOUT")
	setDuration(&cfg.Gateway.WriteTimeout, "ROXY_GATEWAY_WRITE_TIMEOUT")
	setDuration(&cfg.Gateway.IdleTimeout, "ROXY_GATEWAY_IDLE_TIMEOUT")
	setDuration(&cfg.Gateway.OutboundTimeout, "ROXY_GATEWAY_OUTBOUND_TIMEOUT")

	// Registry overrides. DATABASE_URL is honored as a conventional alias
	// for the Postgres DSN.
	setString(&cfg.Registry.Driver, "ROXY_REGISTRY_DRIVER")
	setString(&cfg.Registry.Path, "ROXY_REGISTRY_PATH")
	setString(&cfg.Registry.DSN, "ROXY_REGISTRY_DSN")
	setString(&cfg.Registry.DSN, "DATABASE_URL")
	setInt(&cfg.Registry.MaxConns, "ROXY_REGISTRY_MAX_CONNS")

	// Selector overrides
	setInt64(&cfg.Selector.MaxLatencyMS, "ROXY_SELECTOR_MAX_LATENCY_MS")
	setInt(&cfg.Selector.RandomPoolSize, "ROXY_SELECTOR_RANDOM_POOL_SIZE")
	setInt(&cfg.Selector.BinancePoolSize, "ROXY_SELECTOR_BINANCE_POOL_SIZE")

	// Prober overrides
	setInt(&cfg.Prober.MaxConcurrent, "ROXY_PROBER_MAX_CONCURRENT")
	setDuration(&cfg.Prober.ProbeTimeout, "ROXY_PROBER_PROBE_TIMEOUT")
	setDuration(&cfg.Prober.SweepTimeout, "ROXY_PROBER_SWEEP_TIMEOUT")
	setString(&cfg.Prober.Schedule, "ROXY_PROBER_SCHEDULE")

	// Ingest overrides. Credentials are typically supplied only through the
	// environment to keep them out of the config file.
	setString(&cfg.Ingest.InfoURL, "ROXY_INGEST_INFO_URL")
	setString(&cfg.Ingest.ProxyBaseURL, "ROXY_INGEST_PROXY_BASE_URL")
	setString(&cfg.Ingest.RecordBaseURL, "ROXY_INGEST_RECORD_BASE_URL")
	setString(&cfg.Ingest.ProxyUser, "ROXY_INGEST_PROXY_USER")
	setString(&cfg.Ingest.ProxyPass, "ROXY_INGEST_PROXY_PASS")
	setInt(&cfg.Ingest.PortStart, "ROXY_INGEST_PORT_START")
	setInt(&cfg.Ingest.PortEnd, "ROXY_INGEST_PORT_END")

	// Telemetry overrides
	setString(&cfg.Telemetry.Logging.Level, "ROXY_LOGGING_LEVEL")
	setString(&cfg.Telemetry.Logging.Format, "ROXY_LOGGING_FORMAT")
	if val := os.Getenv("ROXY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func setInt64(dst *int64, key string) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = i
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
