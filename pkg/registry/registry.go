package registry

import (
	"context"
	"errors"
	"fmt"

	"roxy-hq/roxy/pkg/config"
)

// ProxyRecord is one upstream proxy endpoint tracked by the registry.
//
// A record is identified by the (URL, IP) pair. Descriptive fields are
// immutable once ingested; LatencyMS is the only field mutated after
// creation, exclusively by the prober.
type ProxyRecord struct {
	// URL is the connection string for the proxy (scheme, host, port,
	// possibly embedded credentials).
	URL string

	// IP is the proxy's exit address, used as the probe target.
	IP string

	// ISP is the provider operating the exit, for display only.
	ISP string

	// Country is the exit country display name.
	Country string

	// Code is the upper-cased ISO country code.
	Code string

	// LatencyMS is the last measured round-trip time in whole milliseconds.
	// Zero means unmeasured; a non-positive value is never a valid
	// measurement and such records are excluded from selection.
	LatencyMS int64
}

// Filter restricts and bounds a candidate query. Results are always ordered
// ascending by latency, and rows with empty url/ip or latency outside
// (0, MaxLatencyMS) are excluded regardless of the other fields.
type Filter struct {
	// MaxLatencyMS is the exclusive latency ceiling in milliseconds.
	MaxLatencyMS int64

	// RequireCode, when non-empty, restricts candidates to records whose
	// stored country code equals it exactly.
	RequireCode string

	// ExcludeCode, when non-empty, removes records whose stored country code
	// equals it.
	ExcludeCode string

	// Limit bounds the result size. Zero or negative means no limit.
	Limit int
}

// Store is the persistence contract for proxy endpoint records.
//
// Implementations must be safe for concurrent use: gateway requests and
// prober writes run on independent goroutines and synchronize only through
// the store.
type Store interface {
	// UpsertDiscovered inserts a record if its (url, ip) pair is unseen and
	// is a no-op otherwise. Descriptive fields are never overwritten on
	// conflict.
	UpsertDiscovered(ctx context.Context, rec ProxyRecord) error

	// ListIPs returns the probe targets of every tracked record. Only the ip
	// column is fetched to bound data transfer for large pools.
	ListIPs(ctx context.Context) ([]string, error)

	// UpdateLatency records a measured round-trip time for the record with
	// the given ip. If no row matches, the update is silently a no-op: a
	// probe report may race with external cleanup.
	UpdateLatency(ctx context.Context, ip string, latencyMS int64) error

	// QueryCandidates returns the records passing the filter, ordered
	// ascending by latency.
	QueryCandidates(ctx context.Context, f Filter) ([]ProxyRecord, error)

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}

// ErrStoreUnavailable is the sentinel matched by errors.Is for any storage
// failure surfaced by a Store.
var ErrStoreUnavailable = errors.New("registry store unavailable")

// StoreError wraps a driver-level failure. Callers treat it as retryable at
// the request level but must not retry internally; the gateway maps it to a
// 5xx response.
type StoreError struct {
	// Op is the store operation that failed (e.g., "query candidates").
	Op string

	// Err is the underlying driver error.
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("registry: %s: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped driver error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is().
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// storeErr wraps err as a *StoreError, passing nil through.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// Open constructs the Store selected by the registry configuration.
// The context bounds backend connection establishment.
func Open(ctx context.Context, cfg *config.RegistryConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return OpenSQLite(cfg)
	case "postgres":
		return OpenPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown registry driver %q", cfg.Driver)
	}
}
