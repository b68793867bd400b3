// Package metrics exposes bridge counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "daap_remote"

// Forward results.
const (
	ResultOK       = "ok"
	ResultRetried  = "retried"
	ResultFailed   = "failed"
	ResultNoTarget = "no_target"
	ResultNoPeer   = "no_peer"
)

// Metrics holds the counters shared by the bridge components. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sessionsCreated prometheus.Counter
	pairings        *prometheus.CounterVec
	arrowFrames     *prometheus.CounterVec
	forwards        *prometheus.CounterVec
	targetReloads   prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions opened by remote login.",
		}),
		pairings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairings_total",
			Help:      "Pairing attempts by outcome.",
		}, []string{"result"}),
		arrowFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "arrow_frames_total",
			Help:      "Trackpad frames by demux outcome.",
		}, []string{"result"}),
		forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dacp_forwards_total",
			Help:      "Commands forwarded to the receiver by outcome.",
		}, []string{"command", "result"}),
		targetReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dacp_target_reloads_total",
			Help:      "Reloads of the receiver identity file.",
		}),
	}
	m.registry.MustRegister(
		m.sessionsCreated,
		m.pairings,
		m.arrowFrames,
		m.forwards,
		m.targetReloads,
	)
	return m
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) Pairing(ok bool) {
	if m == nil {
		return
	}
	result := ResultOK
	if !ok {
		result = ResultFailed
	}
	m.pairings.WithLabelValues(result).Inc()
}

// ArrowFrame counts a trackpad chunk as matched or dropped.
func (m *Metrics) ArrowFrame(matched bool) {
	if m == nil {
		return
	}
	result := "matched"
	if !matched {
		result = "dropped"
	}
	m.arrowFrames.WithLabelValues(result).Inc()
}

func (m *Metrics) Forward(command, result string) {
	if m == nil {
		return
	}
	m.forwards.WithLabelValues(command, result).Inc()
}

func (m *Metrics) TargetReload() {
	if m == nil {
		return
	}
	m.targetReloads.Inc()
}
