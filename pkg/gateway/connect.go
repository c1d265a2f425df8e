package gateway

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"roxy-hq/roxy/pkg/selector"
)

// handleConnect establishes a bidirectional tunnel through the selected
// upstream proxy. Tunnel targets are opaque, so routing hints do not apply;
// CONNECT always tunnels through the fastest upstream.
func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := h.tunnel(w, r)
	if status != 0 {
		h.metrics.RecordRequest(selector.StrategyMinLatency, strconv.Itoa(status), time.Since(start))
	}
}

// tunnel performs the CONNECT relay. It returns the status reported to
// metrics; 0 means the response was already hijacked when the failure hit
// and nothing more could be written.
func (h *Handler) tunnel(w http.ResponseWriter, r *http.Request) int {
	target := r.Host
	if target == "" {
		return h.fail(w, r, http.StatusBadRequest, "CONNECT without target authority", nil)
	}

	rec, err := h.selector.Select(r.Context(), selector.Request{Strategy: selector.StrategyMinLatency})
	if err != nil {
		return h.fail(w, r, http.StatusInternalServerError, "upstream selection failed", err)
	}
	if rec == nil {
		return h.fail(w, r, http.StatusServiceUnavailable, "no upstream available", nil)
	}

	upstream, upstreamReader, err := h.dialUpstream(r.Context(), rec.URL, target)
	if err != nil {
		return h.fail(w, r, http.StatusBadGateway, "upstream tunnel handshake failed", err)
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		_ = upstream.Close()
		return h.fail(w, r, http.StatusInternalServerError, "connection does not support tunnelling", nil)
	}

	clientConn, clientBuf, err := hijacker.Hijack()
	if err != nil {
		_ = upstream.Close()
		return h.fail(w, r, http.StatusInternalServerError, "failed to take over client connection", err)
	}

	// The server's read/write deadlines still ride the hijacked conn and
	// would cut long-lived tunnels short.
	_ = clientConn.SetDeadline(time.Time{})

	if _, err := clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\nProxy-Agent: roxy/1.0\r\n\r\n")); err != nil {
		_ = clientConn.Close()
		_ = upstream.Close()
		return 0
	}

	h.logger.Debug("tunnel established",
		"target", target,
		"upstream_ip", rec.IP,
		"upstream_latency_ms", rec.LatencyMS,
	)

	// Splice both directions. The first side to finish tears the tunnel
	// down; closing both conns unblocks the other copy.
	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(upstream, clientBuf)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(clientConn, upstreamReader)
		done <- struct{}{}
	}()

	<-done
	_ = clientConn.Close()
	_ = upstream.Close()
	<-done

	return http.StatusOK
}

// dialUpstream connects to the upstream proxy and completes a CONNECT
// handshake for target. The returned reader wraps the connection and may
// hold bytes the upstream sent past its handshake response.
func (h *Handler) dialUpstream(ctx context.Context, proxyRawURL, target string) (net.Conn, *bufio.Reader, error) {
	proxyURL, err := url.Parse(proxyRawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid upstream endpoint: %w", err)
	}

	port := proxyURL.Port()
	if port == "" {
		port = "80"
	}

	dialer := net.Dialer{Timeout: h.outboundTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(proxyURL.Hostname(), port))
	if err != nil {
		return nil, nil, fmt.Errorf("upstream dial failed: %w", err)
	}

	handshake := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n", target, target)
	if user := proxyURL.User; user != nil {
		pass, _ := user.Password()
		cred := base64.StdEncoding.EncodeToString([]byte(user.Username() + ":" + pass))
		handshake += "Proxy-Authorization: Basic " + cred + "\r\n"
	}
	handshake += "\r\n"

	if _, err := conn.Write([]byte(handshake)); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("upstream handshake write failed: %w", err)
	}

	reader := bufio.NewReader(conn)
	resp, err := http.ReadResponse(reader, &http.Request{Method: http.MethodConnect})
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("upstream handshake read failed: %w", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("upstream refused tunnel: %s", resp.Status)
	}

	return conn, reader, nil
}
