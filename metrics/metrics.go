// Package metrics implements the process-wide Prometheus registry: the
// required counters/gauges/histogram of the metrics surface, plus the
// per-endpoint sliding-window success-rate and average-latency gauges.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kinjelom/server-monitor/probe"
)

const namespace = "server_monitor"

// defaultWindow is the sliding-window size used for success_rate and
// avg_response_time when config.DatabaseConfig.HistoryWindow is unset.
const defaultWindow = 100

// Registry exposes the monitoring daemon's Prometheus metrics and
// derives the sliding-window gauges from each endpoint's recent history.
type Registry struct {
	startedAt time.Time
	window    int

	BuildInfo          *prometheus.GaugeVec
	ChecksTotal        *prometheus.CounterVec
	ResponseTime       *prometheus.HistogramVec
	EndpointUp         *prometheus.GaugeVec
	UptimeSeconds      prometheus.Gauge
	SuccessRate        *prometheus.GaugeVec
	AvgResponseTime    *prometheus.GaugeVec
	StoreWriteErrors   prometheus.Counter
	NotificationFails  *prometheus.CounterVec
	Backpressure       prometheus.Counter
}

// NewRegistry constructs and registers every metric with the default
// Prometheus registerer. window is the sliding-window size for
// success_rate/avg_response_time (0 selects the default of 100).
func NewRegistry(programName, programVersion string, window int) *Registry {
	if window <= 0 {
		window = defaultWindow
	}

	r := &Registry{
		startedAt: time.Now(),
		window:    window,

		BuildInfo: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Program build information",
			ConstLabels: prometheus.Labels{
				"program_name":    programName,
				"program_version": programVersion,
			},
		}, []string{}),

		ChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Total number of probe checks performed",
		}, []string{"endpoint", "status"}),

		ResponseTime: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_time_seconds",
			Help:      "Probe response time in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		EndpointUp: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "endpoint_up",
			Help:      "Whether the last probe for an endpoint succeeded (1) or not (0)",
		}, []string{"endpoint"}),

		UptimeSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the process started",
		}),

		SuccessRate: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "endpoint_success_rate",
			Help:      "Fraction of successful probes over the sliding history window",
		}, []string{"endpoint"}),

		AvgResponseTime: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "endpoint_avg_response_time_seconds",
			Help:      "Average probe latency over the sliding history window",
		}, []string{"endpoint"}),

		StoreWriteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_write_errors_total",
			Help:      "Number of probe results dropped due to a store write failure",
		}),

		NotificationFails: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Number of notification deliveries that exhausted their retry budget",
		}, []string{"channel"}),

		Backpressure: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_backpressure_events_total",
			Help:      "Number of ticks that had to wait for a concurrency semaphore slot",
		}),
	}

	r.BuildInfo.With(nil).Set(1)
	return r
}

// Observe records one probe result's effect on the always-on metrics
// (checks_total, response_time_seconds, endpoint_up). Cancelled results
// (produced on shutdown) are not observed, matching the alert state
// machine's exclusion of the same synthetic results.
func (r *Registry) Observe(result probe.Result) {
	if result.Cancelled {
		return
	}

	status := string(result.Status)
	r.ChecksTotal.WithLabelValues(result.EndpointName, status).Inc()

	up := 0.0
	if result.Success {
		up = 1.0
	}
	r.EndpointUp.WithLabelValues(result.EndpointName).Set(up)

	if result.HasLatency {
		r.ResponseTime.WithLabelValues(result.EndpointName).Observe(result.Latency.Seconds())
	}
}

// RecordStoreWriteError increments store_write_errors_total.
func (r *Registry) RecordStoreWriteError() {
	r.StoreWriteErrors.Inc()
}

// RecordNotificationFailure increments notification_failures_total for a channel.
func (r *Registry) RecordNotificationFailure(channel string) {
	r.NotificationFails.WithLabelValues(channel).Inc()
}

// RecordBackpressure increments scheduler_backpressure_events_total.
func (r *Registry) RecordBackpressure() {
	r.Backpressure.Inc()
}

// RefreshUptime updates uptime_seconds. Called on a slow ticker by
// main's uptimeLoop.
func (r *Registry) RefreshUptime() {
	r.UptimeSeconds.Set(time.Since(r.startedAt).Seconds())
}

// RefreshWindow recomputes success_rate and avg_response_time for one
// endpoint from its recent history window.
func (r *Registry) RefreshWindow(endpointName string, recent []probe.Result) {
	if len(recent) == 0 {
		return
	}

	successes := 0
	var latencySum time.Duration
	var latencyCount int
	for _, res := range recent {
		if res.Success {
			successes++
		}
		if res.HasLatency {
			latencySum += res.Latency
			latencyCount++
		}
	}

	r.SuccessRate.WithLabelValues(endpointName).Set(float64(successes) / float64(len(recent)))

	if latencyCount > 0 {
		avg := latencySum / time.Duration(latencyCount)
		r.AvgResponseTime.WithLabelValues(endpointName).Set(avg.Seconds())
	}
}

// Window returns the configured sliding-window size.
func (r *Registry) Window() int { return r.window }
