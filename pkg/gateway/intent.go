package gateway

import (
	"net/http"
	"strings"

	"roxy-hq/roxy/pkg/selector"
)

// Routing-hint headers. Both are stripped before forwarding.
const (
	// StrategyHeader selects the strategy, optionally carrying a country
	// as "strategy/country".
	StrategyHeader = "X-Proxy-Strategy"

	// CountryHeader alone forces the country strategy.
	CountryHeader = "X-Proxy-Country"
)

// proxyPathPrefix is the path form of intent: /proxy/{strategy}/{country}.
const proxyPathPrefix = "/proxy/"

// deriveIntent extracts the selection intent from the request. The path form
// wins over headers; with neither present the intent is minlatency.
func deriveIntent(r *http.Request) selector.Request {
	if req, ok := intentFromPath(r.URL.Path); ok {
		return req
	}
	return intentFromHeaders(r.Header)
}

func intentFromPath(path string) (selector.Request, bool) {
	if !strings.HasPrefix(path, proxyPathPrefix) {
		return selector.Request{}, false
	}

	parts := strings.Split(strings.TrimPrefix(path, proxyPathPrefix), "/")
	if len(parts) == 0 || parts[0] == "" {
		return selector.Request{}, false
	}

	req := selector.Request{Strategy: parts[0]}
	if len(parts) > 1 && parts[1] != "" {
		req.Country = parts[1]
	}
	return req, true
}

func intentFromHeaders(h http.Header) selector.Request {
	if v := h.Get(StrategyHeader); v != "" {
		strategy, country, found := strings.Cut(v, "/")
		if found {
			return selector.Request{Strategy: strategy, Country: country}
		}
		return selector.Request{Strategy: v}
	}

	if c := h.Get(CountryHeader); c != "" {
		return selector.Request{Strategy: selector.StrategyCountry, Country: c}
	}

	return selector.Request{Strategy: selector.StrategyMinLatency}
}
