// Package registry provides the durable store of upstream proxy endpoints.
//
// The registry owns the authoritative copy of every ProxyRecord. The prober
// writes latency measurements back through UpdateLatency, the selector reads
// candidate sets through QueryCandidates, and the ingestion job inserts newly
// discovered endpoints through UpsertDiscovered. Components hold no shared
// in-process cache; every read reflects the latest committed state.
//
// Two backends are provided:
//   - SQLite (modernc.org/sqlite): single-node deployments and tests, no
//     external service required.
//   - Postgres (jackc/pgx/v5): shared deployments where the ingestion job and
//     the gateway run as separate processes.
//
// Both backends serialize conflicting writes at the storage layer; no
// application-level locking is needed because latency updates are idempotent
// single-field writes keyed by ip.
package registry
