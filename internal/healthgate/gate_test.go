package healthgate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yz4230/shipd/internal/entity"
)

func testConfig() Config {
	return Config{
		Timeout:      300 * time.Millisecond,
		Interval:     50 * time.Millisecond,
		ProbeTimeout: 100 * time.Millisecond,
	}
}

func TestWaitHealthyImmediate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gate := New(testConfig())
	report, err := gate.WaitHealthy(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("WaitHealthy: %v", err)
	}
	if len(report.Results) != 1 {
		t.Fatalf("probes = %d; want 1 (early termination)", len(report.Results))
	}
	if report.Results[0].Outcome != entity.HealthOutcomeHealthy {
		t.Fatalf("outcome = %s; want healthy", report.Results[0].Outcome)
	}
}

func TestWaitHealthyEventually(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gate := New(testConfig())
	report, err := gate.WaitHealthy(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("WaitHealthy: %v", err)
	}
	healthy, unhealthy, unreachable := report.Counts()
	if healthy != 1 || unhealthy != 2 || unreachable != 0 {
		t.Fatalf("counts = (%d,%d,%d); want (1,2,0)", healthy, unhealthy, unreachable)
	}
}

func TestWaitHealthyTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig()
	gate := New(cfg)
	start := time.Now()
	_, err := gate.WaitHealthy(context.Background(), srv.URL)
	elapsed := time.Since(start)

	if !errors.Is(err, entity.ErrHealthTimeout) {
		t.Fatalf("err = %v; want ErrHealthTimeout", err)
	}
	if elapsed < cfg.Timeout {
		t.Fatalf("terminated after %s; want at least %s", elapsed, cfg.Timeout)
	}
	// bounded by timeout + one interval, with probe-time slack
	limit := cfg.Timeout + cfg.Interval + cfg.ProbeTimeout
	if elapsed > limit {
		t.Fatalf("terminated after %s; want at most %s", elapsed, limit)
	}
}

func TestWaitHealthyUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close() // nothing listens anymore

	gate := New(testConfig())
	report, err := gate.WaitHealthy(context.Background(), target)
	if !errors.Is(err, entity.ErrHealthTimeout) {
		t.Fatalf("err = %v; want ErrHealthTimeout", err)
	}
	_, _, unreachable := report.Counts()
	if unreachable == 0 {
		t.Fatal("expected unreachable probes to be recorded")
	}
	for _, res := range report.Results {
		if res.Outcome != entity.HealthOutcomeUnreachable {
			t.Fatalf("outcome = %s; want unreachable", res.Outcome)
		}
	}
}

func TestWaitHealthyCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Timeout = 10 * time.Second
	gate := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(80 * time.Millisecond)
		cancel()
	}()

	_, err := gate.WaitHealthy(ctx, srv.URL)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
}
