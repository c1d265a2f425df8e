package gateway

import (
	"bytes"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"roxy-hq/roxy/pkg/config"
	"roxy-hq/roxy/pkg/selector"
	"roxy-hq/roxy/pkg/telemetry/metrics"
)

// strippedHeaders are never forwarded upstream: hop-by-hop headers, headers
// the outbound client recomputes, and the gateway's own routing hints.
// Matched case-insensitively.
var strippedHeaders = map[string]bool{
	"host":                true,
	"connection":          true,
	"proxy-connection":    true,
	"content-length":      true,
	"proxy-authorization": true,
	"x-proxy-strategy":    true,
	"x-proxy-country":     true,
}

// Handler relays one request at a time through a selected upstream proxy.
type Handler struct {
	selector        *selector.Selector
	outboundTimeout time.Duration
	metrics         *metrics.Collector
	logger          *slog.Logger
}

// NewHandler creates the gateway's request handler.
func NewHandler(sel *selector.Selector, cfg *config.GatewayConfig, collector *metrics.Collector) *Handler {
	return &Handler{
		selector:        sel,
		outboundTimeout: cfg.OutboundTimeout,
		metrics:         collector,
		logger:          slog.Default().With("component", "gateway"),
	}
}

// ServeHTTP dispatches CONNECT requests to the tunnel path and everything
// else to plain forwarding.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		h.handleConnect(w, r)
		return
	}
	h.handleForward(w, r)
}

// handleForward relays a non-CONNECT request through the selected upstream
// and copies the upstream response back verbatim.
func (h *Handler) handleForward(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	intent := deriveIntent(r)
	label := h.selector.CanonicalName(intent.Strategy)

	status := h.forward(w, r, intent)

	h.metrics.RecordRequest(label, strconv.Itoa(status), time.Since(start))
}

// forward performs the relay and returns the status written to the client.
func (h *Handler) forward(w http.ResponseWriter, r *http.Request, intent selector.Request) int {
	target, err := targetURL(r)
	if err != nil {
		return h.fail(w, r, http.StatusBadRequest, "request has no resolvable target", err)
	}

	rec, err := h.selector.Select(r.Context(), intent)
	if err != nil {
		if errors.Is(err, selector.ErrCountryRequired) {
			return h.fail(w, r, http.StatusBadRequest, "country strategy without country code", err)
		}
		return h.fail(w, r, http.StatusInternalServerError, "upstream selection failed", err)
	}
	if rec == nil {
		return h.fail(w, r, http.StatusServiceUnavailable, "no upstream available", nil)
	}

	client, transport, err := h.outboundClient(rec.URL)
	if err != nil {
		return h.fail(w, r, http.StatusInternalServerError, "invalid upstream endpoint", err)
	}
	// The transport lives for one exchange; drop its pooled connection (and
	// the read/write goroutines parked on it) instead of waiting for the
	// upstream to hang up.
	defer transport.CloseIdleConnections()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return h.fail(w, r, http.StatusInternalServerError, "failed to read request body", err)
	}

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target, bodyReader)
	if err != nil {
		return h.fail(w, r, http.StatusInternalServerError, "failed to build outbound request", err)
	}
	copyForwardableHeaders(out.Header, r.Header)

	h.logger.Debug("forwarding request",
		"target", target,
		"upstream_ip", rec.IP,
		"upstream_latency_ms", rec.LatencyMS,
	)

	resp, err := client.Do(out)
	if err != nil {
		return h.fail(w, r, http.StatusBadGateway, "upstream exchange failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Buffer the full response before committing a status; a mid-body
	// upstream failure still maps to 502 this way.
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return h.fail(w, r, http.StatusBadGateway, "failed to read upstream response", err)
	}

	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(respBody)

	return resp.StatusCode
}

// outboundClient builds a client pinned to one upstream proxy URL.
// Credentials embedded in the URL become proxy basic-auth. Certificate
// verification is disabled; the pool is made of residential endpoints that
// intercept TLS.
func (h *Handler) outboundClient(proxyRawURL string) (*http.Client, *http.Transport, error) {
	proxyURL, err := url.Parse(proxyRawURL)
	if err != nil {
		return nil, nil, err
	}

	transport := &http.Transport{
		Proxy:           http.ProxyURL(proxyURL),
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	return &http.Client{
		Transport: transport,
		Timeout:   h.outboundTimeout,
	}, transport, nil
}

// fail writes an error status and logs it. Returns the status for metrics.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, msg string, err error) int {
	h.logger.Warn(msg,
		"status", status,
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	http.Error(w, msg, status)
	return status
}

// targetURL resolves the origin target of a non-CONNECT request.
// Absolute-form requests (the normal forward-proxy shape) pass through
// untouched; origin-form requests are rewritten to HTTPS against the Host
// header.
func targetURL(r *http.Request) (string, error) {
	if r.URL.IsAbs() {
		return r.URL.String(), nil
	}
	if r.Host == "" {
		return "", errors.New("origin-form request without Host header")
	}
	return "https://" + r.Host + r.URL.RequestURI(), nil
}

// copyForwardableHeaders copies src into dst minus the strip list.
func copyForwardableHeaders(dst, src http.Header) {
	for name, values := range src {
		if strippedHeaders[strings.ToLower(name)] {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}
