package ingest

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"roxy-hq/roxy/pkg/config"
	"roxy-hq/roxy/pkg/registry"
)

// endpointInfo is the provider's IP-information response, reduced to the
// fields the registry keeps.
type endpointInfo struct {
	Proxy struct {
		IP string `json:"ip"`
	} `json:"proxy"`
	ISP struct {
		ISP string `json:"isp"`
	} `json:"isp"`
	Country struct {
		Name string `json:"name"`
		Code string `json:"code"`
	} `json:"country"`
}

// Collector walks the provider's gateway port range and registers every
// reachable endpoint.
type Collector struct {
	store  registry.Store
	cfg    *config.IngestConfig
	logger *slog.Logger
}

// New creates a Collector writing into the given store.
func New(store registry.Store, cfg *config.IngestConfig) *Collector {
	return &Collector{
		store:  store,
		cfg:    cfg,
		logger: slog.Default().With("component", "ingest"),
	}
}

// Run discovers every port in [PortStart, PortEnd] with bounded parallelism.
// Per-port failures are logged and skipped; Run fails only on misconfigured
// inputs.
func (c *Collector) Run(ctx context.Context) error {
	if c.cfg.PortStart > c.cfg.PortEnd {
		return fmt.Errorf("invalid port range %d..%d", c.cfg.PortStart, c.cfg.PortEnd)
	}

	total := c.cfg.PortEnd - c.cfg.PortStart + 1
	c.logger.Info("discovery started",
		"port_start", c.cfg.PortStart,
		"port_end", c.cfg.PortEnd,
		"max_concurrent", c.cfg.MaxConcurrent,
	)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	semaphore := make(chan struct{}, c.cfg.MaxConcurrent)

	for port := c.cfg.PortStart; port <= c.cfg.PortEnd; port++ {
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			c.logger.Warn("discovery cancelled", "error", ctx.Err())
			wg.Wait()
			return ctx.Err()
		}

		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.discoverPort(ctx, port); err != nil {
				c.logger.Warn("port discovery failed", "port", port, "error", err)
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}(port)
	}

	wg.Wait()

	c.logger.Info("discovery completed",
		"ports", total,
		"registered", succeeded,
	)
	return nil
}

// discoverPort asks one gateway port for its exit identity and upserts the
// resulting record with zero latency.
func (c *Collector) discoverPort(ctx context.Context, port int) error {
	client, transport, err := c.portClient(port)
	if err != nil {
		return err
	}
	// One request per port; release the pooled connection immediately.
	defer transport.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.InfoURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build info request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("info request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("info request returned %s", resp.Status)
	}

	var info endpointInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return fmt.Errorf("failed to decode info response: %w", err)
	}
	if info.Proxy.IP == "" {
		return fmt.Errorf("info response carries no exit IP")
	}

	rec := registry.ProxyRecord{
		URL:       fmt.Sprintf("%s:%d", c.cfg.RecordBaseURL, port),
		IP:        info.Proxy.IP,
		ISP:       info.ISP.ISP,
		Country:   info.Country.Name,
		Code:      info.Country.Code,
		LatencyMS: 0, // unmeasured until the next sweep
	}

	if err := c.store.UpsertDiscovered(ctx, rec); err != nil {
		return err
	}

	c.logger.Debug("endpoint registered",
		"port", port,
		"ip", rec.IP,
		"country", rec.Country,
	)
	return nil
}

// portClient builds an HTTP client routed through one gateway port, with the
// provider's proxy credentials attached.
func (c *Collector) portClient(port int) (*http.Client, *http.Transport, error) {
	proxyURL, err := url.Parse(fmt.Sprintf("%s:%d", c.cfg.ProxyBaseURL, port))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid gateway port URL: %w", err)
	}
	if c.cfg.ProxyUser != "" {
		proxyURL.User = url.UserPassword(c.cfg.ProxyUser, c.cfg.ProxyPass)
	}

	transport := &http.Transport{
		Proxy:           http.ProxyURL(proxyURL),
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	return &http.Client{
		Transport: transport,
		Timeout:   c.cfg.RequestTimeout,
	}, transport, nil
}
