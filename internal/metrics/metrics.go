// Package metrics exposes Prometheus instrumentation for the polling
// core: how often each resource is fetched, how often it fails, how
// long requests take, and what the notification bridge is doing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Polling metrics
	TicksTotal   prometheus.Counter     // Scheduler ticks, timer or manual
	PollsTotal   *prometheus.CounterVec // Fetch attempts per resource
	PollFailures *prometheus.CounterVec // Fetch failures per resource
	PollDuration prometheus.Histogram   // End-to-end fetch latency

	// Mode and health gauges
	LiveMode        prometheus.Gauge // 1 when data mode is LIVE
	UpstreamHealthy prometheus.Gauge // 1 when the backend answers healthz

	// Notification bridge metrics
	NotificationsPushed  prometheus.Counter // Items accepted into the queue
	NotificationsDeduped prometheus.Counter // Pushes dropped by the dedup rule

	// Action trigger metrics
	TriggerRuns     *prometheus.CounterVec // Trigger invocations per action
	TriggerFailures *prometheus.CounterVec // Trigger failures per action
}

// New registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers on a custom registry, which keeps tests
// isolated from the global state.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "chakraops_ticks_total",
			Help: "Total scheduler ticks, timer-driven or manual",
		}),
		PollsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chakraops_polls_total",
			Help: "Total fetch attempts per backend resource",
		}, []string{"resource"}),
		PollFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chakraops_poll_failures_total",
			Help: "Total fetch failures per backend resource",
		}, []string{"resource"}),
		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chakraops_poll_duration_seconds",
			Help:    "End-to-end fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		LiveMode: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chakraops_live_mode",
			Help: "1 when the dashboard polls the live backend",
		}),
		UpstreamHealthy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chakraops_upstream_healthy",
			Help: "1 when the backend healthz probe succeeds",
		}),
		NotificationsPushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "chakraops_notifications_pushed_total",
			Help: "Total notification items accepted into the queue",
		}),
		NotificationsDeduped: factory.NewCounter(prometheus.CounterOpts{
			Name: "chakraops_notifications_deduped_total",
			Help: "Total notification pushes dropped as duplicates",
		}),
		TriggerRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chakraops_trigger_runs_total",
			Help: "Total action trigger invocations per action",
		}, []string{"action"}),
		TriggerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chakraops_trigger_failures_total",
			Help: "Total action trigger failures per action",
		}, []string{"action"}),
	}
}

// PollAttempt records one fetch attempt for resource.
func (m *Metrics) PollAttempt(resource string) {
	if m == nil {
		return
	}
	m.PollsTotal.WithLabelValues(resource).Inc()
}

// PollFailed records one fetch failure for resource.
func (m *Metrics) PollFailed(resource string) {
	if m == nil {
		return
	}
	m.PollFailures.WithLabelValues(resource).Inc()
}

// ObservePollDuration records one fetch latency sample.
func (m *Metrics) ObservePollDuration(seconds float64) {
	if m == nil {
		return
	}
	m.PollDuration.Observe(seconds)
}

// SetLiveMode flips the mode gauge.
func (m *Metrics) SetLiveMode(live bool) {
	if m == nil {
		return
	}
	if live {
		m.LiveMode.Set(1)
	} else {
		m.LiveMode.Set(0)
	}
}

// SetUpstreamHealthy flips the upstream health gauge.
func (m *Metrics) SetUpstreamHealthy(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.UpstreamHealthy.Set(1)
	} else {
		m.UpstreamHealthy.Set(0)
	}
}

// NotificationPushed counts an accepted push.
func (m *Metrics) NotificationPushed() {
	if m == nil {
		return
	}
	m.NotificationsPushed.Inc()
}

// NotificationDeduped counts a push dropped by the dedup rule.
func (m *Metrics) NotificationDeduped() {
	if m == nil {
		return
	}
	m.NotificationsDeduped.Inc()
}

// TriggerRun counts a trigger invocation.
func (m *Metrics) TriggerRun(action string) {
	if m == nil {
		return
	}
	m.TriggerRuns.WithLabelValues(action).Inc()
}

// TriggerFailed counts a trigger failure.
func (m *Metrics) TriggerFailed(action string) {
	if m == nil {
		return
	}
	m.TriggerFailures.WithLabelValues(action).Inc()
}

// TickInc counts a scheduler tick.
func (m *Metrics) TickInc() {
	if m == nil {
		return
	}
	m.TicksTotal.Inc()
}
