package selector

import (
	"context"
	"log/slog"
	"strings"

	"roxy-hq/roxy/pkg/config"
	"roxy-hq/roxy/pkg/registry"
	"roxy-hq/roxy/pkg/telemetry/metrics"
)

// Request is the ephemeral input to a selection: a strategy name and, for the
// country strategy, an ISO country code. Both are matched case-insensitively.
type Request struct {
	// Strategy is the selection policy name. Empty or unrecognized names
	// behave as minlatency.
	Strategy string

	// Country is the requested exit country code, used only by the country
	// strategy (directly or via the strategy/country header form).
	Country string
}

// Selector resolves selection requests against the registry. It holds no
// candidate cache; every Select reflects the latest committed registry state.
type Selector struct {
	store      registry.Store
	ceilingMS  int64
	strategies map[string]Strategy
	fallback   Strategy
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// New creates a Selector over the given store, with strategies configured
// from cfg. The collector may be nil.
func New(store registry.Store, cfg *config.SelectorConfig, collector *metrics.Collector) *Selector {
	minLatency := minLatencyStrategy{}

	return &Selector{
		store:     store,
		ceilingMS: cfg.MaxLatencyMS,
		metrics:   collector,
		strategies: map[string]Strategy{
			StrategyMinLatency: minLatency,
			StrategyRandom:     randomStrategy{poolSize: cfg.RandomPoolSize},
			StrategyCountry:    countryStrategy{},
			StrategyBinance: binanceStrategy{
				poolSize:    cfg.BinancePoolSize,
				excludeCode: cfg.BinanceExcludeCode,
			},
		},
		fallback: minLatency,
		logger:   slog.Default().With("component", "selector"),
	}
}

// Resolve maps a strategy name to its implementation. Unrecognized names
// fall back to minlatency with a warning; the permissive default is part of
// the selection contract.
func (s *Selector) Resolve(name string) Strategy {
	if name == "" {
		return s.fallback
	}
	if strat, ok := s.strategies[strings.ToLower(name)]; ok {
		return strat
	}
	s.logger.Warn("unknown strategy, falling back to minlatency", "strategy", name)
	return s.fallback
}

// CanonicalName returns the strategy name Select would use for the given
// requested name. Unlike Resolve it never logs; it exists for bounded metric
// labels.
func (s *Selector) CanonicalName(name string) string {
	if name == "" {
		return s.fallback.Name()
	}
	if strat, ok := s.strategies[strings.ToLower(name)]; ok {
		return strat.Name()
	}
	return s.fallback.Name()
}

// Select returns one proxy record for the request, or (nil, nil) when no
// candidate passes the strategy's filter. Registry failures propagate
// unchanged; callers map them to a 5xx, never retry here.
func (s *Selector) Select(ctx context.Context, req Request) (*registry.ProxyRecord, error) {
	strat := s.Resolve(req.Strategy)

	filter, err := strat.Shape(req, registry.Filter{MaxLatencyMS: s.ceilingMS})
	if err != nil {
		s.metrics.RecordSelection(strat.Name(), "error")
		return nil, err
	}

	candidates, err := s.store.QueryCandidates(ctx, filter)
	if err != nil {
		s.metrics.RecordSelection(strat.Name(), "error")
		return nil, err
	}
	if len(candidates) == 0 {
		s.metrics.RecordSelection(strat.Name(), "unavailable")
		s.logger.Debug("no upstream available",
			"strategy", strat.Name(),
			"country", req.Country,
		)
		return nil, nil
	}

	rec := strat.Pick(candidates)
	s.metrics.RecordSelection(strat.Name(), "selected")
	s.logger.Debug("upstream selected",
		"strategy", strat.Name(),
		"ip", rec.IP,
		"latency_ms", rec.LatencyMS,
		"code", rec.Code,
	)
	return rec, nil
}
