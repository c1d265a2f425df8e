package selector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"roxy-hq/roxy/pkg/config"
	"roxy-hq/roxy/pkg/registry"
	"roxy-hq/roxy/pkg/telemetry/metrics"
)

// stubStore implements registry.Store over an in-memory record slice,
// applying Filter semantics the way the real backends do: base invariant,
// code constraints, ascending latency order, limit.
type stubStore struct {
	records []registry.ProxyRecord
	err     error

	lastFilter registry.Filter
}

func (s *stubStore) QueryCandidates(_ context.Context, f registry.Filter) ([]registry.ProxyRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastFilter = f

	var out []registry.ProxyRecord
	for _, rec := range s.records {
		if rec.LatencyMS <= 0 || rec.LatencyMS >= f.MaxLatencyMS {
			continue
		}
		if rec.URL == "" || rec.IP == "" {
			continue
		}
		if f.RequireCode != "" && rec.Code != f.RequireCode {
			continue
		}
		if f.ExcludeCode != "" && rec.Code == f.ExcludeCode {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LatencyMS < out[j].LatencyMS })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *stubStore) UpsertDiscovered(context.Context, registry.ProxyRecord) error { return nil }
func (s *stubStore) ListIPs(context.Context) ([]string, error)                    { return nil, nil }
func (s *stubStore) UpdateLatency(context.Context, string, int64) error           { return nil }
func (s *stubStore) Ping(context.Context) error                                   { return nil }
func (s *stubStore) Close() error                                                 { return nil }

func defaultSelectorConfig() *config.SelectorConfig {
	return &config.SelectorConfig{
		MaxLatencyMS:       300,
		RandomPoolSize:     30,
		BinancePoolSize:    20,
		BinanceExcludeCode: "JP",
	}
}

func newTestSelector(records []registry.ProxyRecord) (*Selector, *stubStore) {
	store := &stubStore{records: records}
	return New(store, defaultSelectorConfig(), nil), store
}

func TestSelect_NeverReturnsOutOfCeilingRecords(t *testing.T) {
	records := []registry.ProxyRecord{
		{URL: "http://gw:1", IP: "10.0.0.1", Code: "DE", LatencyMS: 0},    // unmeasured
		{URL: "http://gw:2", IP: "10.0.0.2", Code: "DE", LatencyMS: -5},   // invalid
		{URL: "http://gw:3", IP: "10.0.0.3", Code: "DE", LatencyMS: 300},  // at ceiling
		{URL: "http://gw:4", IP: "10.0.0.4", Code: "DE", LatencyMS: 5000}, // above ceiling
	}
	sel, _ := newTestSelector(records)

	for _, strategy := range []string{StrategyMinLatency, StrategyRandom, StrategyCountry, StrategyBinance} {
		req := Request{Strategy: strategy}
		if strategy == StrategyCountry {
			req.Country = "DE"
		}
		rec, err := sel.Select(context.Background(), req)
		if err != nil {
			t.Fatalf("%s: Select failed: %v", strategy, err)
		}
		if rec != nil {
			t.Errorf("%s: expected no candidate, got %+v", strategy, rec)
		}
	}
}

func TestSelect_MinLatencyPicksFastest(t *testing.T) {
	sel, store := newTestSelector([]registry.ProxyRecord{
		{URL: "http://gw:1", IP: "10.0.0.1", LatencyMS: 120},
		{URL: "http://gw:2", IP: "10.0.0.2", LatencyMS: 45},
		{URL: "http://gw:3", IP: "10.0.0.3", LatencyMS: 80},
	})

	rec, err := sel.Select(context.Background(), Request{Strategy: StrategyMinLatency})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if rec == nil || rec.IP != "10.0.0.2" {
		t.Errorf("Expected fastest record 10.0.0.2, got %+v", rec)
	}
	if store.lastFilter.Limit != 1 {
		t.Errorf("Expected minlatency to query with limit 1, got %d", store.lastFilter.Limit)
	}
}

func TestSelect_UnknownStrategyBehavesAsMinLatency(t *testing.T) {
	records := []registry.ProxyRecord{
		{URL: "http://gw:1", IP: "10.0.0.1", LatencyMS: 90},
		{URL: "http://gw:2", IP: "10.0.0.2", LatencyMS: 30},
	}
	sel, _ := newTestSelector(records)

	want, err := sel.Select(context.Background(), Request{Strategy: StrategyMinLatency})
	if err != nil {
		t.Fatalf("Select(minlatency) failed: %v", err)
	}
	got, err := sel.Select(context.Background(), Request{Strategy: "bogus"})
	if err != nil {
		t.Fatalf("Select(bogus) failed: %v", err)
	}
	if got == nil || want == nil || got.IP != want.IP {
		t.Errorf("Unknown strategy should match minlatency: got %+v, want %+v", got, want)
	}
}

func TestSelect_StrategyNameIsCaseInsensitive(t *testing.T) {
	sel, _ := newTestSelector([]registry.ProxyRecord{
		{URL: "http://gw:1", IP: "10.0.0.1", Code: "DE", LatencyMS: 50},
	})

	rec, err := sel.Select(context.Background(), Request{Strategy: "Country", Country: "de"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if rec == nil || rec.Code != "DE" {
		t.Errorf("Expected DE record for mixed-case strategy and country, got %+v", rec)
	}
}

func TestSelect_CountryRequiresCode(t *testing.T) {
	sel, _ := newTestSelector(nil)

	_, err := sel.Select(context.Background(), Request{Strategy: StrategyCountry})
	if !errors.Is(err, ErrCountryRequired) {
		t.Errorf("Expected ErrCountryRequired, got %v", err)
	}
}

func TestSelect_CountryMatchesStoredCodeExactly(t *testing.T) {
	sel, store := newTestSelector([]registry.ProxyRecord{
		{URL: "http://gw:1", IP: "10.0.0.1", Code: "DE", LatencyMS: 50},
		{URL: "http://gw:2", IP: "10.0.0.2", Code: "US", LatencyMS: 20},
	})

	rec, err := sel.Select(context.Background(), Request{Strategy: StrategyCountry, Country: "de"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if rec == nil || rec.IP != "10.0.0.1" {
		t.Errorf("Expected the DE record, got %+v", rec)
	}
	if store.lastFilter.RequireCode != "DE" {
		t.Errorf("Expected upper-cased required code DE, got %q", store.lastFilter.RequireCode)
	}
}

func TestSelect_CountryNoMatchReturnsNil(t *testing.T) {
	sel, _ := newTestSelector([]registry.ProxyRecord{
		{URL: "http://gw:1", IP: "10.0.0.1", Code: "US", LatencyMS: 50},
	})

	rec, err := sel.Select(context.Background(), Request{Strategy: StrategyCountry, Country: "DE"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if rec != nil {
		t.Errorf("Expected nil for unmatched country, got %+v", rec)
	}
}

func TestSelect_BinanceNeverReturnsExcludedCode(t *testing.T) {
	records := []registry.ProxyRecord{
		{URL: "http://gw:1", IP: "10.0.0.1", Code: "JP", LatencyMS: 10},
		{URL: "http://gw:2", IP: "10.0.0.2", Code: "JP", LatencyMS: 15},
		{URL: "http://gw:3", IP: "10.0.0.3", Code: "US", LatencyMS: 90},
		{URL: "http://gw:4", IP: "10.0.0.4", Code: "DE", LatencyMS: 120},
	}
	sel, _ := newTestSelector(records)

	for i := 0; i < 200; i++ {
		rec, err := sel.Select(context.Background(), Request{Strategy: StrategyBinance})
		if err != nil {
			t.Fatalf("Select failed: %v", err)
		}
		if rec == nil {
			t.Fatal("Expected a candidate")
		}
		if rec.Code == "JP" {
			t.Fatalf("Binance strategy returned excluded JP record: %+v", rec)
		}
	}
}

func TestSelect_RandomSamplingIsRoughlyUniform(t *testing.T) {
	var records []registry.ProxyRecord
	ips := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5"}
	for i, ip := range ips {
		records = append(records, registry.ProxyRecord{
			URL:       "http://gw:1",
			IP:        ip,
			LatencyMS: int64(10 + i),
		})
	}
	sel, _ := newTestSelector(records)

	const trials = 5000
	counts := make(map[string]int)
	for i := 0; i < trials; i++ {
		rec, err := sel.Select(context.Background(), Request{Strategy: StrategyRandom})
		if err != nil {
			t.Fatalf("Select failed: %v", err)
		}
		counts[rec.IP]++
	}

	// Each of the 5 candidates should land near trials/5. A 30% band is wide
	// enough to make flakes vanishingly rare while still catching biased
	// sampling (e.g., always rank 1).
	expected := trials / len(ips)
	for _, ip := range ips {
		got := counts[ip]
		if got < expected*7/10 || got > expected*13/10 {
			t.Errorf("Selection of %s not uniform: got %d, expected about %d", ip, got, expected)
		}
	}
}

func TestSelect_RandomSamplesTopPoolOnly(t *testing.T) {
	cfg := defaultSelectorConfig()
	cfg.RandomPoolSize = 2

	var records []registry.ProxyRecord
	for i := 0; i < 5; i++ {
		records = append(records, registry.ProxyRecord{
			URL:       "http://gw:1",
			IP:        fmt.Sprintf("10.0.0.%d", i+1),
			LatencyMS: int64(10 * (i + 1)),
		})
	}
	store := &stubStore{records: records}
	sel := New(store, cfg, nil)

	for i := 0; i < 100; i++ {
		rec, err := sel.Select(context.Background(), Request{Strategy: StrategyRandom})
		if err != nil {
			t.Fatalf("Select failed: %v", err)
		}
		if rec.LatencyMS > 20 {
			t.Fatalf("Random pick outside the top-2 pool: %+v", rec)
		}
	}
}

func TestSelect_EmptyPoolReturnsNilNotError(t *testing.T) {
	sel, _ := newTestSelector(nil)

	rec, err := sel.Select(context.Background(), Request{Strategy: StrategyRandom})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if rec != nil {
		t.Errorf("Expected nil record for empty pool, got %+v", rec)
	}
}

func TestSelect_PropagatesStoreError(t *testing.T) {
	store := &stubStore{err: &registry.StoreError{Op: "query candidates", Err: errors.New("connection refused")}}
	sel := New(store, defaultSelectorConfig(), nil)

	_, err := sel.Select(context.Background(), Request{Strategy: StrategyMinLatency})
	if !errors.Is(err, registry.ErrStoreUnavailable) {
		t.Errorf("Expected store error to propagate unchanged, got %v", err)
	}
}

func TestSelect_RecordsSelectionOutcomes(t *testing.T) {
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "roxy"}, nil)
	store := &stubStore{records: []registry.ProxyRecord{
		{URL: "http://gw:1", IP: "10.0.0.1", LatencyMS: 50},
	}}
	sel := New(store, defaultSelectorConfig(), collector)

	if _, err := sel.Select(context.Background(), Request{Strategy: StrategyMinLatency}); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if _, err := sel.Select(context.Background(), Request{Strategy: StrategyCountry, Country: "DE"}); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if _, err := sel.Select(context.Background(), Request{Strategy: StrategyCountry}); !errors.Is(err, ErrCountryRequired) {
		t.Fatalf("Expected ErrCountryRequired, got %v", err)
	}

	families, err := collector.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	outcomes := make(map[string]int)
	for _, mf := range families {
		if mf.GetName() != "roxy_selector_selections_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" {
					outcomes[l.GetValue()] += int(m.GetCounter().GetValue())
				}
			}
		}
	}

	want := map[string]int{"selected": 1, "unavailable": 1, "error": 1}
	for outcome, count := range want {
		if outcomes[outcome] != count {
			t.Errorf("Outcome %q recorded %d times, want %d", outcome, outcomes[outcome], count)
		}
	}
}
