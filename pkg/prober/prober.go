package prober

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"roxy-hq/roxy/pkg/config"
	"roxy-hq/roxy/pkg/registry"
	"roxy-hq/roxy/pkg/telemetry/metrics"
)

// Prober runs latency sweeps over the registry's tracked IPs.
type Prober struct {
	store   registry.Store
	pinger  Pinger
	cfg     *config.ProberConfig
	metrics *metrics.Collector
	logger  *slog.Logger
}

// New creates a Prober. The metrics collector may be nil.
func New(store registry.Store, pinger Pinger, cfg *config.ProberConfig, collector *metrics.Collector) *Prober {
	return &Prober{
		store:   store,
		pinger:  pinger,
		cfg:     cfg,
		metrics: collector,
		logger:  slog.Default().With("component", "prober"),
	}
}

// RunSweep probes every tracked IP and writes successful measurements back
// to the registry as they complete. Parallelism is capped at
// cfg.MaxConcurrent and each probe carries its own timeout; the sweep as a
// whole is bounded by cfg.SweepTimeout. When the sweep deadline fires,
// probes not yet started are skipped and in-flight probes are abandoned
// without being awaited; their updates are lost, but every update committed
// before the deadline remains.
//
// Per-target failures are logged and skipped; they never abort the sweep.
// The only error returned is a registry failure while listing targets.
func (p *Prober) RunSweep(ctx context.Context) error {
	sweepID := uuid.NewString()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.SweepTimeout)
	defer cancel()

	ips, err := p.store.ListIPs(ctx)
	if err != nil {
		return err
	}
	if len(ips) == 0 {
		p.logger.Info("sweep completed, no targets", "sweep_id", sweepID)
		p.metrics.RecordSweep("completed")
		return nil
	}

	p.logger.Info("sweep started",
		"sweep_id", sweepID,
		"targets", len(ips),
		"max_concurrent", p.cfg.MaxConcurrent,
	)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, p.cfg.MaxConcurrent)

dispatch:
	for _, ip := range ips {
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}

		wg.Add(1)
		go func(ip string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			p.probeAndCommit(ctx, sweepID, ip)
		}(ip)
	}

	// Wait for completion, but let the sweep deadline abandon whatever is
	// still in flight. The goroutines drain on their own once their probe
	// contexts expire; the sweep does not owe them a wait.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("sweep completed",
			"sweep_id", sweepID,
			"targets", len(ips),
			"elapsed", time.Since(start),
		)
		p.metrics.RecordSweep("completed")
	case <-ctx.Done():
		p.logger.Warn("sweep timed out, abandoning pending probes",
			"sweep_id", sweepID,
			"elapsed", time.Since(start),
		)
		p.metrics.RecordSweep("timeout")
	}

	return nil
}

// probeAndCommit measures one target and immediately commits a successful
// measurement. Each probe commits independently; there is no end-of-sweep
// bulk write to lose.
func (p *Prober) probeAndCommit(ctx context.Context, sweepID, ip string) {
	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	rtt, err := p.pinger.Ping(probeCtx, ip)
	if err != nil {
		result := "unreachable"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			result = "timeout"
		}
		p.metrics.RecordProbe(result, 0)
		p.logger.Debug("probe failed",
			"sweep_id", sweepID,
			"ip", ip,
			"result", result,
			"error", err,
		)
		return
	}

	// Whole milliseconds, truncated, to match the registry's storage unit.
	latencyMS := rtt.Milliseconds()

	if err := p.store.UpdateLatency(ctx, ip, latencyMS); err != nil {
		p.metrics.RecordProbe("commit_failed", 0)
		p.logger.Warn("latency update failed",
			"sweep_id", sweepID,
			"ip", ip,
			"error", err,
		)
		return
	}

	p.metrics.RecordProbe("success", rtt)
	p.logger.Debug("probe committed",
		"sweep_id", sweepID,
		"ip", ip,
		"latency_ms", latencyMS,
	)
}
