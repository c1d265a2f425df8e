// Package selector turns a selection request into exactly one upstream proxy
// record, or reports that no upstream is available.
//
// Four strategies are provided:
//   - minlatency: the single fastest candidate (default)
//   - random: uniform pick from the fastest 30 candidates
//   - country: the fastest candidate in a requested country
//   - binance: uniform pick from the fastest 20 candidates outside JP
//
// Every strategy first restricts to records passing the base invariant: a
// positive measured latency strictly under the configured ceiling and
// non-empty url/ip. Unrecognized strategy names silently fall back to
// minlatency; this is documented behavior, not an error.
package selector
