package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinjelom/server-monitor/alert"
	"github.com/kinjelom/server-monitor/config"
	"github.com/kinjelom/server-monitor/metrics"
	"github.com/kinjelom/server-monitor/notify"
	"github.com/kinjelom/server-monitor/probe"
	"github.com/kinjelom/server-monitor/store"
)

func TestNextTick_AnchorsToStartWithoutDrift(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	interval := 30 * time.Second

	now := start.Add(35 * time.Second)
	next := nextTick(start, now, interval)
	assert.Equal(t, start.Add(60*time.Second), next)
}

func TestNextTick_ExactlyOnBoundaryReturnsThatBoundary(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	interval := 10 * time.Second

	now := start.Add(20 * time.Second)
	next := nextTick(start, now, interval)
	assert.Equal(t, start.Add(20*time.Second), next)
}

type chanSub struct {
	ch chan probe.Result
}

func (c *chanSub) OnResult(r probe.Result) {
	select {
	case c.ch <- r:
	default:
	}
}

func newTestEngine(t *testing.T, cfg *config.Config) (*Engine, *metrics.Registry, store.Store) {
	t.Helper()

	st, err := store.Open(context.Background(), cfg.Global.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg := metrics.NewRegistry("server-monitor", "test", 0)
	t.Cleanup(func() {
		prometheus.Unregister(reg.BuildInfo)
		prometheus.Unregister(reg.ChecksTotal)
		prometheus.Unregister(reg.ResponseTime)
		prometheus.Unregister(reg.EndpointUp)
		prometheus.Unregister(reg.UptimeSeconds)
		prometheus.Unregister(reg.SuccessRate)
		prometheus.Unregister(reg.AvgResponseTime)
		prometheus.Unregister(reg.StoreWriteErrors)
		prometheus.Unregister(reg.NotificationFails)
		prometheus.Unregister(reg.Backpressure)
	})
	alerts := alert.NewRegistry()
	dispatcher := notify.NewDispatcher(nil)

	return New(cfg, st, reg, alerts, dispatcher), reg, st
}

func TestEngine_RunProbesAndRecordsResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := &config.Config{
		Global: config.GlobalConfig{
			MaxConcurrentChecks: 2,
			Database:            config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
		},
		Endpoints: map[string]config.EndpointConfig{
			"ep1": {
				Kind:            "http",
				IntervalSeconds: 1,
				HTTP: &config.HTTPProbeConfig{
					URL:            srv.URL,
					Method:         http.MethodGet,
					Timeout:        500 * time.Millisecond,
					ExpectedStatus: []int{200},
				},
			},
		},
	}

	e, _, st := newTestEngine(t, cfg)
	sub := &chanSub{ch: make(chan probe.Result, 10)}
	e.Subscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	select {
	case r := <-sub.ch:
		assert.Equal(t, "ep1", r.EndpointName)
		assert.True(t, r.Success)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a probe result")
	}
	cancel()
	<-done

	recent, err := st.Recent(context.Background(), "ep1", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, recent)
}

func TestEngine_DisabledEndpointNeverRuns(t *testing.T) {
	disabled := false
	cfg := &config.Config{
		Global: config.GlobalConfig{
			MaxConcurrentChecks: 2,
			Database:            config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
		},
		Endpoints: map[string]config.EndpointConfig{
			"ep1": {
				Kind:            "tcp",
				IntervalSeconds: 1,
				Enabled:         &disabled,
				TCP:             &config.TCPProbeConfig{Host: "127.0.0.1", Port: 1, Timeout: 100 * time.Millisecond},
			},
		},
	}

	e, _, _ := newTestEngine(t, cfg)
	sub := &chanSub{ch: make(chan probe.Result, 10)}
	e.Subscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	select {
	case <-sub.ch:
		t.Fatal("expected no probe result for a disabled endpoint")
	case <-time.After(150 * time.Millisecond):
	}
	cancel()
	<-done
}
