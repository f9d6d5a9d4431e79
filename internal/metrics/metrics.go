// Package metrics holds the Prometheus collectors for the scan pipeline.
//
// All methods on a nil *Metrics are no-ops, so components can be built
// without metrics in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "hostmap"

// Probe outcomes recorded by [Metrics.ObserveProbe].
const (
	OutcomeReachable   = "reachable"
	OutcomeUnreachable = "unreachable"
	OutcomeFailed      = "failed"
)

// Metrics groups every collector exported by hostmap.
type Metrics struct {
	registry *prometheus.Registry

	probes          *prometheus.CounterVec
	probeDuration   prometheus.Histogram
	lookupFailures  prometheus.Counter
	lookupCacheHits prometheus.Counter
	inFlight        prometheus.Gauge
	upserts         prometheus.Counter
	upsertErrors    prometheus.Counter
	broadcasts      prometheus.Counter
	subscribers     prometheus.Gauge
	pruned          prometheus.Counter
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Completed probe tasks by outcome.",
		}, []string{"outcome"}),
		probeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Wall time of one probe (echo check plus geolocation lookup).",
			Buckets:   []float64{0.1, 0.5, 1, 2, 3, 5, 10, 20},
		}),
		lookupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_failures_total",
			Help:      "Geolocation lookups that returned no location.",
		}),
		lookupCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_cache_hits_total",
			Help:      "Geolocation lookups served from the cache.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probes_in_flight",
			Help:      "Probe tasks currently running in the worker pool.",
		}),
		upserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upserts_total",
			Help:      "Records committed to the store.",
		}),
		upsertErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upsert_errors_total",
			Help:      "Record writes that failed and were dropped.",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Change notifications fanned out to subscribers.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Live subscribers registered with the broadcast hub.",
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscribers_pruned_total",
			Help:      "Subscribers removed after a failed delivery.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.probes,
		m.probeDuration,
		m.lookupFailures,
		m.lookupCacheHits,
		m.inFlight,
		m.upserts,
		m.upsertErrors,
		m.broadcasts,
		m.subscribers,
		m.pruned,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveProbe records one finished probe task.
func (m *Metrics) ObserveProbe(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(outcome).Inc()
	m.probeDuration.Observe(d.Seconds())
}

// LookupFailed counts a lookup that produced no location.
func (m *Metrics) LookupFailed() {
	if m == nil {
		return
	}
	m.lookupFailures.Inc()
}

// LookupCacheHit counts a lookup answered from the cache.
func (m *Metrics) LookupCacheHit() {
	if m == nil {
		return
	}
	m.lookupCacheHits.Inc()
}

// TaskStarted increments the in-flight gauge.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// TaskFinished decrements the in-flight gauge.
func (m *Metrics) TaskFinished() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

// Upserted counts a committed write.
func (m *Metrics) Upserted() {
	if m == nil {
		return
	}
	m.upserts.Inc()
}

// UpsertFailed counts a dropped write.
func (m *Metrics) UpsertFailed() {
	if m == nil {
		return
	}
	m.upsertErrors.Inc()
}

// Broadcast counts one fan-out pass.
func (m *Metrics) Broadcast() {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
}

// SetSubscribers sets the live subscriber gauge.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

// Pruned counts subscribers removed after failed delivery.
func (m *Metrics) Pruned(n int) {
	if m == nil {
		return
	}
	m.pruned.Add(float64(n))
}
