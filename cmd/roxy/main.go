// Roxy is a latency-aware HTTP(S) proxy gateway backed by a pool of upstream
// proxy endpoints.
//
// It accepts ordinary forward-proxy traffic, picks an upstream endpoint per
// request using a configurable strategy (minlatency, random, country,
// binance), and relays the exchange through it. A background prober keeps
// per-endpoint latencies fresh.
//
// Usage:
//
//	# Start the gateway with default configuration
//	roxy run
//
//	# Start with custom configuration file
//	roxy run --config /path/to/config.yaml
//
//	# Run one latency sweep and exit
//	roxy sweep
//
//	# Discover provider endpoints and seed the registry
//	roxy ingest
//
//	# Validate configuration without starting anything
//	roxy validate
//
//	# Show version information
//	roxy version
package main

func main() {
	Execute()
}
