package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bridge_relayer"

// Metrics holds the relayer collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	eventsObserved   *prometheus.CounterVec
	syncHeight       *prometheus.GaugeVec
	relayTransitions *prometheus.CounterVec
	relayErrors      *prometheus.CounterVec
	queueDepth       prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsObserved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_observed_total",
			Help:      "Bridge events recorded in the ledger, by source chain.",
		}, []string{"chain"}),
		syncHeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_height",
			Help:      "Last synced block or slot, by chain.",
		}, []string{"chain"}),
		relayTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_transitions_total",
			Help:      "Relay status transitions, by target status.",
		}, []string{"status"}),
		relayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_errors_total",
			Help:      "Failed relay attempts, by stage.",
		}, []string{"stage"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "processing_queue_depth",
			Help:      "Rows waiting for signatures or submission.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.eventsObserved,
		m.syncHeight,
		m.relayTransitions,
		m.relayErrors,
		m.queueDepth,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) EventObserved(chain string) {
	if m == nil {
		return
	}
	m.eventsObserved.WithLabelValues(chain).Inc()
}

func (m *Metrics) SetSyncHeight(chain string, height uint64) {
	if m == nil {
		return
	}
	m.syncHeight.WithLabelValues(chain).Set(float64(height))
}

func (m *Metrics) RelayTransition(status string) {
	if m == nil {
		return
	}
	m.relayTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) RelayError(stage string) {
	if m == nil {
		return
	}
	m.relayErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
