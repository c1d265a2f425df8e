// Package gateway implements the HTTP front door of the proxy pool.
//
// The gateway accepts ordinary forward-proxy traffic (absolute-form requests
// and CONNECT) as well as origin-form requests addressed to it directly. For
// every request it derives a selection intent, asks the selector for one
// upstream proxy endpoint, and relays the exchange through that endpoint.
//
// # Intent Derivation
//
// The selection strategy is derived per request, first match wins:
//
//  1. Path form: /proxy/{strategy}/{country}
//  2. X-Proxy-Strategy header, optionally "strategy/country"
//  3. X-Proxy-Country header alone, which forces the country strategy
//  4. Default: minlatency
//
// CONNECT requests always use minlatency; tunnel targets are opaque so
// per-request routing hints do not apply.
//
// # Forwarding
//
// Non-CONNECT requests are re-issued through the selected upstream with a
// fresh outbound client whose transport is pinned to the upstream's URL.
// Origin-form requests are rewritten to HTTPS against the Host header.
// Hop-by-hop and routing-hint headers are stripped; everything else is
// copied verbatim in both directions.
//
// # Status Mapping
//
//   - 400: origin-form request without a Host, or country strategy without
//     a country code
//   - 502: upstream exchange failed
//   - 503: no upstream available for the intent
//   - 500: selection or internal failure
package gateway
