// Package metrics exposes the scheduler's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "idrsched"

// Reload outcomes.
const (
	ReloadOK     = "ok"
	ReloadFailed = "failed"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	firings        *prometheus.CounterVec
	firingDuration *prometheus.HistogramVec
	triggers       prometheus.Gauge
	reloads        *prometheus.CounterVec
	skipped        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		firings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "firings_total",
			Help:      "Trigger firings by subscription and outcome.",
		}, []string{"subscription", "outcome"}),
		firingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "firing_duration_seconds",
			Help:      "Wall time of one firing, from unseal to session close.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"subscription"}),
		triggers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduled_triggers",
			Help:      "Triggers currently registered with the cron engine.",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Configuration reloads by outcome.",
		}, []string{"outcome"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_subscriptions_total",
			Help:      "Enabled subscriptions left unscheduled, by reason.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.firings, m.firingDuration, m.triggers, m.reloads, m.skipped)
	}
	return m
}

// ObserveFiring records one completed firing.
func (m *Metrics) ObserveFiring(subscription, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.firings.WithLabelValues(subscription, outcome).Inc()
	m.firingDuration.WithLabelValues(subscription).Observe(d.Seconds())
}

// SetTriggers records the size of the live trigger set.
func (m *Metrics) SetTriggers(n int) {
	if m == nil {
		return
	}
	m.triggers.Set(float64(n))
}

// ObserveReload records a reload outcome.
func (m *Metrics) ObserveReload(outcome string) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(outcome).Inc()
}

// ObserveSkipped records an enabled subscription that could not be scheduled.
func (m *Metrics) ObserveSkipped(reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(reason).Inc()
}
