package selector

import (
	"errors"
	"math/rand"
	"strings"

	"roxy-hq/roxy/pkg/registry"
)

// Strategy names accepted by the selector. Matching is case-insensitive.
const (
	StrategyMinLatency = "minlatency"
	StrategyRandom     = "random"
	StrategyCountry    = "country"
	StrategyBinance    = "binance"
)

// ErrCountryRequired is returned when the country strategy is invoked
// without a country code.
var ErrCountryRequired = errors.New("country strategy requires a country code")

// Strategy is the contract for one selection policy. Implementations must be
// thread-safe; they are called concurrently from goroutines handling
// simultaneous gateway requests.
type Strategy interface {
	// Name returns the strategy name for logging and metrics.
	Name() string

	// Shape narrows the base candidate filter for this strategy. The base
	// filter already carries the latency ceiling; Shape adds country
	// constraints and the result bound the strategy samples from.
	Shape(req Request, base registry.Filter) (registry.Filter, error)

	// Pick chooses one record from a non-empty candidate set. Candidates are
	// ordered ascending by latency.
	Pick(candidates []registry.ProxyRecord) *registry.ProxyRecord
}

// pickFirst returns the fastest candidate (rank 1). Latency ties are broken
// by storage order, which is unspecified and acceptable.
func pickFirst(candidates []registry.ProxyRecord) *registry.ProxyRecord {
	return &candidates[0]
}

// pickUniform returns a uniformly random candidate.
func pickUniform(candidates []registry.ProxyRecord) *registry.ProxyRecord {
	return &candidates[rand.Intn(len(candidates))]
}

// minLatencyStrategy selects the single fastest candidate. It is the default
// strategy and the fallback for unrecognized strategy names.
type minLatencyStrategy struct{}

func (minLatencyStrategy) Name() string { return StrategyMinLatency }

func (minLatencyStrategy) Shape(_ Request, base registry.Filter) (registry.Filter, error) {
	base.Limit = 1
	return base, nil
}

func (minLatencyStrategy) Pick(candidates []registry.ProxyRecord) *registry.ProxyRecord {
	return pickFirst(candidates)
}

// randomStrategy samples uniformly from the fastest poolSize candidates,
// trading a little latency for request-level origin diversity.
type randomStrategy struct {
	poolSize int
}

func (randomStrategy) Name() string { return StrategyRandom }

func (s randomStrategy) Shape(_ Request, base registry.Filter) (registry.Filter, error) {
	base.Limit = s.poolSize
	return base, nil
}

func (randomStrategy) Pick(candidates []registry.ProxyRecord) *registry.ProxyRecord {
	return pickUniform(candidates)
}

// countryStrategy selects the fastest candidate whose stored country code
// equals the upper-cased requested code.
type countryStrategy struct{}

func (countryStrategy) Name() string { return StrategyCountry }

func (countryStrategy) Shape(req Request, base registry.Filter) (registry.Filter, error) {
	if req.Country == "" {
		return base, ErrCountryRequired
	}
	base.RequireCode = strings.ToUpper(req.Country)
	base.Limit = 1
	return base, nil
}

func (countryStrategy) Pick(candidates []registry.ProxyRecord) *registry.ProxyRecord {
	return pickFirst(candidates)
}

// binanceStrategy samples uniformly from the fastest poolSize candidates
// outside the excluded region. Binance rejects clients from that region, so
// a record there would be reachable but useless.
type binanceStrategy struct {
	poolSize    int
	excludeCode string
}

func (binanceStrategy) Name() string { return StrategyBinance }

func (s binanceStrategy) Shape(_ Request, base registry.Filter) (registry.Filter, error) {
	base.ExcludeCode = s.excludeCode
	base.Limit = s.poolSize
	return base, nil
}

func (binanceStrategy) Pick(candidates []registry.ProxyRecord) *registry.ProxyRecord {
	return pickUniform(candidates)
}
