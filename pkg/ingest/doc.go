// Package ingest discovers the provider's proxy endpoints and seeds the
// registry with them.
//
// The provider exposes its pool as a contiguous range of gateway ports,
// each pinned to one exit. For every port the collector sends an
// IP-information request through that port's gateway, decodes the exit's
// identity (IP, ISP, country), and upserts a ProxyRecord with zero latency.
// The prober measures the endpoints afterwards; until then they are not
// selectable.
//
// Discovery is idempotent: re-running it against the same pool only inserts
// endpoints not seen before, and never touches measured latencies.
package ingest
