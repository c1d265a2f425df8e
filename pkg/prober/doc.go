// Package prober measures reachability latency for every endpoint tracked in
// the registry.
//
// A sweep fetches the full IP list, fans out probes with bounded parallelism
// (default 50) and a per-probe timeout (default 5s), and commits each
// successful measurement to the registry immediately. The whole sweep is
// bounded by an overall timeout (default 20s); when it fires, still-pending
// probes are abandoned and updates already committed remain. Partial success
// is the contract, not a failure mode: a half-finished sweep still leaves the
// pool fresher than it was.
//
// Probes use the system ping command (one packet, bounded reply wait) and
// store the parsed round-trip time truncated to whole milliseconds, matching
// the registry's storage unit.
package prober
