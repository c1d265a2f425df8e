package config

import (
	"fmt"
	"net"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "gateway.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateGateway(&cfg.Gateway)...)
	errs = append(errs, validateRegistry(&cfg.Registry)...)
	errs = append(errs, validateSelector(&cfg.Selector)...)
	errs = append(errs, validateProber(&cfg.Prober)...)
	errs = append(errs, validateIngest(&cfg.Ingest)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateGateway(cfg *GatewayConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{"gateway.listen_address", "must not be empty"})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{"gateway.listen_address",
			fmt.Sprintf("invalid host:port address: %v", err)})
	}
	if cfg.OutboundTimeout < 0 {
		errs = append(errs, FieldError{"gateway.outbound_timeout", "must not be negative"})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{"gateway.max_header_bytes", "must not be negative"})
	}

	return errs
}

func validateRegistry(cfg *RegistryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Driver {
	case "sqlite":
		if cfg.Path == "" {
			errs = append(errs, FieldError{"registry.path", "must not be empty for sqlite driver"})
		}
	case "postgres":
		if cfg.DSN == "" {
			errs = append(errs, FieldError{"registry.dsn", "must not be empty for postgres driver"})
		}
	default:
		errs = append(errs, FieldError{"registry.driver",
			fmt.Sprintf("unknown driver %q (supported: sqlite, postgres)", cfg.Driver)})
	}
	if cfg.MaxConns < 1 {
		errs = append(errs, FieldError{"registry.max_conns", "must be at least 1"})
	}
	if cfg.MinConns < 0 || cfg.MinConns > cfg.MaxConns {
		errs = append(errs, FieldError{"registry.min_conns", "must be between 0 and max_conns"})
	}

	return errs
}

func validateSelector(cfg *SelectorConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxLatencyMS <= 0 {
		errs = append(errs, FieldError{"selector.max_latency_ms", "must be positive"})
	}
	if cfg.RandomPoolSize < 1 {
		errs = append(errs, FieldError{"selector.random_pool_size", "must be at least 1"})
	}
	if cfg.BinancePoolSize < 1 {
		errs = append(errs, FieldError{"selector.binance_pool_size", "must be at least 1"})
	}
	if code := cfg.BinanceExcludeCode; code != strings.ToUpper(code) {
		errs = append(errs, FieldError{"selector.binance_exclude_code", "must be upper-case"})
	}

	return errs
}

func validateProber(cfg *ProberConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxConcurrent < 1 {
		errs = append(errs, FieldError{"prober.max_concurrent", "must be at least 1"})
	}
	if cfg.ProbeTimeout <= 0 {
		errs = append(errs, FieldError{"prober.probe_timeout", "must be positive"})
	}
	if cfg.SweepTimeout <= 0 {
		errs = append(errs, FieldError{"prober.sweep_timeout", "must be positive"})
	}
	if cfg.ProbeTimeout > cfg.SweepTimeout {
		errs = append(errs, FieldError{"prober.probe_timeout", "must not exceed sweep_timeout"})
	}
	if cfg.PingDeadline <= 0 {
		errs = append(errs, FieldError{"prober.ping_deadline", "must be positive"})
	}

	return errs
}

func validateIngest(cfg *IngestConfig) []FieldError {
	var errs []FieldError

	if cfg.PortStart < 1 || cfg.PortStart > 65535 {
		errs = append(errs, FieldError{"ingest.port_start", "must be a valid port"})
	}
	if cfg.PortEnd < 1 || cfg.PortEnd > 65535 {
		errs = append(errs, FieldError{"ingest.port_end", "must be a valid port"})
	}
	if cfg.PortEnd < cfg.PortStart {
		errs = append(errs, FieldError{"ingest.port_end", "must not be below port_start"})
	}
	if cfg.MaxConcurrent < 1 {
		errs = append(errs, FieldError{"ingest.max_concurrent", "must be at least 1"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level",
			fmt.Sprintf("unknown level %q (supported: debug, info, warn, error)", cfg.Logging.Level)})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format",
			fmt.Sprintf("unknown format %q (supported: json, text)", cfg.Logging.Format)})
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{"telemetry.metrics.path", "must start with /"})
	}

	return errs
}
