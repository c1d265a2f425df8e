// Package config provides configuration loading, validation, and defaults
// for Roxy.
//
// Configuration is loaded from a YAML file, merged with defaults, overridden
// by environment variables, and validated before use. The resulting Config is
// constructed once at startup and passed explicitly into the registry,
// selector, prober, and gateway constructors.
//
// Environment variables follow the naming convention ROXY_SECTION_FIELD
// (e.g., ROXY_GATEWAY_LISTEN_ADDRESS) and always take precedence over
// file-based configuration.
//
// Example:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store, err := registry.Open(&cfg.Registry)
package config
