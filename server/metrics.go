package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	reg prometheus.Registerer

	datagrams    prometheus.Counter
	decodeErrors prometheus.Counter
	handshakes   prometheus.Counter
	dropped      *prometheus.CounterVec
	connections  prometheus.Gauge
}

// newMetrics creates the listener's collectors, registering them with reg
// unless it is nil.
func newMetrics(reg prometheus.Registerer, listener string) *metrics {
	labels := prometheus.Labels{"listener": listener}
	m := &metrics{
		reg: reg,
		datagrams: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "raknet_datagrams_received_total",
			Help:        "Datagrams read from the socket.",
			ConstLabels: labels,
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "raknet_decode_errors_total",
			Help:        "Datagrams discarded because they did not decode.",
			ConstLabels: labels,
		}),
		handshakes: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "raknet_handshakes_completed_total",
			Help:        "Peers that reached the fully connected state.",
			ConstLabels: labels,
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "raknet_dropped_total",
			Help:        "Datagrams dropped because an internal queue was full.",
			ConstLabels: labels,
		}, []string{"queue"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "raknet_connections",
			Help:        "Entries in the connection table.",
			ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.collectors()...)
	}
	return m
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.datagrams, m.decodeErrors, m.handshakes, m.dropped, m.connections}
}

// unregister lets another listener reuse the same address.
func (m *metrics) unregister() {
	if m.reg == nil {
		return
	}
	for _, c := range m.collectors() {
		m.reg.Unregister(c)
	}
}
