// Package metrics provides the prometheus-backed implementation of
// xgaze.Monitor for hosts that scrape this layer.
package metrics

import (
	"github.com/overlayvr/gazenet/xgaze"
	"github.com/prometheus/client_golang/prometheus"
)

var _ xgaze.Monitor = (*Monitor)(nil)

type Monitor struct {
	connectFailures   *prometheus.CounterVec
	handshakeFailures *prometheus.CounterVec
	samplesPublished  *prometheus.CounterVec
	samplesDropped    *prometheus.CounterVec
}

// NewMonitor registers the gaze ingestion counters on the given
// registerer.
func NewMonitor(reg prometheus.Registerer) *Monitor {
	m := &Monitor{
		connectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gazenet",
			Name:      "connect_failures_total",
			Help:      "Tracker construction failures at the transport step.",
		}, []string{"tracker"}),
		handshakeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gazenet",
			Name:      "handshake_failures_total",
			Help:      "Tracker construction failures at the handshake step.",
		}, []string{"tracker"}),
		samplesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gazenet",
			Name:      "samples_published_total",
			Help:      "Gaze samples published into the shared cell.",
		}, []string{"tracker"}),
		samplesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gazenet",
			Name:      "samples_dropped_total",
			Help:      "Gaze samples discarded inside the ingestion loop.",
		}, []string{"tracker", "reason"}),
	}

	reg.MustRegister(m.connectFailures, m.handshakeFailures, m.samplesPublished, m.samplesDropped)

	return m
}

func (m *Monitor) ConnectFailed(t xgaze.TrackerType, _ error) {
	m.connectFailures.WithLabelValues(t.String()).Inc()
}

func (m *Monitor) HandshakeFailed(t xgaze.TrackerType, _ error) {
	m.handshakeFailures.WithLabelValues(t.String()).Inc()
}

func (m *Monitor) SamplePublished(t xgaze.TrackerType, _ xgaze.Vector) {
	m.samplesPublished.WithLabelValues(t.String()).Inc()
}

func (m *Monitor) SampleDropped(t xgaze.TrackerType, reason string) {
	m.samplesDropped.WithLabelValues(t.String(), reason).Inc()
}
