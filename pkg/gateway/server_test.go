package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"roxy-hq/roxy/pkg/config"
	"roxy-hq/roxy/pkg/selector"
	"roxy-hq/roxy/pkg/telemetry/health"
	"roxy-hq/roxy/pkg/telemetry/metrics"
)

func newTestServer(check health.CheckFunc) http.Handler {
	cfg := config.NewDefaultConfig()
	sel := selector.New(&stubStore{}, &cfg.Selector, nil)
	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	checker := health.New(0)
	if check != nil {
		checker.RegisterCheck("registry", check)
	}

	return NewServer(cfg, sel, collector, checker).setupRoutes()
}

func TestSetupRoutes_ServesLocalEndpoints(t *testing.T) {
	handler := newTestServer(func(context.Context) error { return nil })

	for _, path := range []string{"/metrics", "/health", "/ready"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
	}
}

func TestSetupRoutes_ReadinessReflectsRegistry(t *testing.T) {
	handler := newTestServer(func(context.Context) error { return errors.New("registry down") })

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /ready = %d, want 503", w.Code)
	}
}

func TestSetupRoutes_AbsoluteFormBypassesLocalEndpoints(t *testing.T) {
	handler := newTestServer(nil)

	// Absolute-form /metrics is proxy traffic, not the local endpoint;
	// with an empty registry it must fail with 503, not serve metrics.
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://origin.example/metrics", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Absolute-form /metrics = %d, want 503", w.Code)
	}
}
