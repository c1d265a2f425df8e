package prober

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"roxy-hq/roxy/pkg/config"
	"roxy-hq/roxy/pkg/registry"
)

// memStore is a minimal registry.Store capturing latency updates.
type memStore struct {
	mu      sync.Mutex
	ips     []string
	updates map[string]int64
	listErr error
}

func newMemStore(ips ...string) *memStore {
	return &memStore{ips: ips, updates: make(map[string]int64)}
}

func (m *memStore) ListIPs(context.Context) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.ips, nil
}

func (m *memStore) UpdateLatency(_ context.Context, ip string, latencyMS int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates[ip] = latencyMS
	return nil
}

func (m *memStore) snapshot() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.updates))
	for k, v := range m.updates {
		out[k] = v
	}
	return out
}

func (m *memStore) UpsertDiscovered(context.Context, registry.ProxyRecord) error { return nil }
func (m *memStore) QueryCandidates(context.Context, registry.Filter) ([]registry.ProxyRecord, error) {
	return nil, nil
}
func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

// fakePinger returns canned results and can hold selected probes until their
// context is cancelled. It also tracks the peak number of concurrent probes.
type fakePinger struct {
	mu       sync.Mutex
	rtts     map[string]time.Duration
	errs     map[string]error
	hang     map[string]bool
	inFlight int
	peak     int
}

func newFakePinger() *fakePinger {
	return &fakePinger{
		rtts: make(map[string]time.Duration),
		errs: make(map[string]error),
		hang: make(map[string]bool),
	}
}

func (f *fakePinger) Ping(ctx context.Context, ip string) (time.Duration, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	hang := f.hang[ip]
	rtt := f.rtts[ip]
	err := f.errs[ip]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if hang {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if err != nil {
		return 0, err
	}
	return rtt, nil
}

func (f *fakePinger) peakConcurrency() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func testProberConfig() *config.ProberConfig {
	return &config.ProberConfig{
		MaxConcurrent: 50,
		ProbeTimeout:  200 * time.Millisecond,
		SweepTimeout:  time.Second,
		PingDeadline:  100 * time.Millisecond,
	}
}

func TestRunSweep_CommitsAllMeasurements(t *testing.T) {
	store := newMemStore("10.0.0.1", "10.0.0.2", "10.0.0.3")
	pinger := newFakePinger()
	pinger.rtts["10.0.0.1"] = 45 * time.Millisecond
	pinger.rtts["10.0.0.2"] = 120 * time.Millisecond
	pinger.errs["10.0.0.3"] = ErrUnreachable

	p := New(store, pinger, testProberConfig(), nil)
	if err := p.RunSweep(context.Background()); err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}

	updates := store.snapshot()
	if len(updates) != 2 {
		t.Fatalf("Expected 2 committed updates, got %d: %v", len(updates), updates)
	}
	if updates["10.0.0.1"] != 45 {
		t.Errorf("Expected 45ms for 10.0.0.1, got %d", updates["10.0.0.1"])
	}
	if updates["10.0.0.2"] != 120 {
		t.Errorf("Expected 120ms for 10.0.0.2, got %d", updates["10.0.0.2"])
	}
	if _, ok := updates["10.0.0.3"]; ok {
		t.Error("Unreachable target must not be committed")
	}
}

func TestRunSweep_TruncatesFractionalMilliseconds(t *testing.T) {
	store := newMemStore("10.0.0.1")
	pinger := newFakePinger()
	pinger.rtts["10.0.0.1"] = 45*time.Millisecond + 900*time.Microsecond

	p := New(store, pinger, testProberConfig(), nil)
	if err := p.RunSweep(context.Background()); err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}

	if got := store.snapshot()["10.0.0.1"]; got != 45 {
		t.Errorf("Expected truncation to 45ms, got %d", got)
	}
}

func TestRunSweep_EmptyTargetListCompletesImmediately(t *testing.T) {
	store := newMemStore()
	p := New(store, newFakePinger(), testProberConfig(), nil)

	start := time.Now()
	if err := p.RunSweep(context.Background()); err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Empty sweep should complete immediately, took %v", elapsed)
	}
}

func TestRunSweep_RespectsConcurrencyCap(t *testing.T) {
	var ips []string
	for i := 0; i < 40; i++ {
		ips = append(ips, fmt.Sprintf("10.0.1.%d", i+1))
	}
	store := newMemStore(ips...)

	pinger := newFakePinger()
	for _, ip := range ips {
		pinger.rtts[ip] = 10 * time.Millisecond
	}

	cfg := testProberConfig()
	cfg.MaxConcurrent = 5

	p := New(store, pinger, cfg, nil)
	if err := p.RunSweep(context.Background()); err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}

	if peak := pinger.peakConcurrency(); peak > 5 {
		t.Errorf("Concurrency cap violated: peak %d probes in flight", peak)
	}
	if got := len(store.snapshot()); got != 40 {
		t.Errorf("Expected all 40 targets committed, got %d", got)
	}
}

func TestRunSweep_TimeoutKeepsPartialResults(t *testing.T) {
	store := newMemStore("10.0.0.1", "10.0.0.2", "10.0.0.3")

	pinger := newFakePinger()
	pinger.rtts["10.0.0.1"] = 20 * time.Millisecond
	pinger.rtts["10.0.0.2"] = 30 * time.Millisecond
	pinger.hang["10.0.0.3"] = true

	cfg := testProberConfig()
	cfg.SweepTimeout = 300 * time.Millisecond
	cfg.ProbeTimeout = 10 * time.Second // per-probe timeout longer than the sweep

	p := New(store, pinger, cfg, nil)

	start := time.Now()
	if err := p.RunSweep(context.Background()); err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}
	elapsed := time.Since(start)

	// The sweep must return at its own deadline without awaiting the hung probe.
	if elapsed > 800*time.Millisecond {
		t.Errorf("Sweep did not abandon pending probes at the deadline, took %v", elapsed)
	}

	updates := store.snapshot()
	if updates["10.0.0.1"] != 20 || updates["10.0.0.2"] != 30 {
		t.Errorf("Completed updates must survive the sweep timeout, got %v", updates)
	}
	if _, ok := updates["10.0.0.3"]; ok {
		t.Error("Unfinished probe must not have committed an update")
	}
}

func TestRunSweep_PropagatesListError(t *testing.T) {
	store := newMemStore()
	store.listErr = &registry.StoreError{Op: "list ips", Err: context.DeadlineExceeded}

	p := New(store, newFakePinger(), testProberConfig(), nil)
	if err := p.RunSweep(context.Background()); err == nil {
		t.Fatal("Expected list error to propagate")
	}
}

func TestScheduler_EmptyScheduleIsDisabled(t *testing.T) {
	p := New(newMemStore(), newFakePinger(), testProberConfig(), nil)
	s := NewScheduler(p, "")

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if s.IsRunning() {
		t.Error("Scheduler with empty schedule should not run")
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	p := New(newMemStore(), newFakePinger(), testProberConfig(), nil)
	s := NewScheduler(p, "not a cron expression")

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("Expected error for invalid cron expression")
	}
}

func TestScheduler_StartAndStop(t *testing.T) {
	p := New(newMemStore(), newFakePinger(), testProberConfig(), nil)
	s := NewScheduler(p, "@every 1h")

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !s.IsRunning() {
		t.Fatal("Expected scheduler to be running")
	}

	cancel()

	// Context cancellation stops the scheduler asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("Scheduler did not stop after context cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
