package publicstore

import "github.com/prometheus/client_golang/prometheus"

type registerer = prometheus.Registerer

// WithMetrics registers the store's Prometheus collectors with reg.
// Without this option the collectors still count but stay unregistered,
// so multiple stores in one process never collide on a registry.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) { c.registry = reg }
}

type storeMetrics struct {
	updates            *prometheus.CounterVec
	broadcastsSent     prometheus.Counter
	broadcastsReceived prometheus.Counter
	decodeFailures     prometheus.Counter
	subscribers        prometheus.Gauge
}

func newStoreMetrics(reg prometheus.Registerer) *storeMetrics {
	m := &storeMetrics{
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blitz",
			Subsystem: "publicstore",
			Name:      "updates_total",
			Help:      "Session state updates applied, by whether they broadcast.",
		}, []string{"broadcast"}),
		broadcastsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blitz",
			Subsystem: "publicstore",
			Name:      "broadcasts_sent_total",
			Help:      "Broadcast-key writes signalling sibling contexts.",
		}),
		broadcastsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blitz",
			Subsystem: "publicstore",
			Name:      "broadcasts_received_total",
			Help:      "Foreign broadcasts that triggered a recompute.",
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blitz",
			Subsystem: "publicstore",
			Name:      "token_decode_failures_total",
			Help:      "Session tokens that failed to decode.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blitz",
			Subsystem: "publicstore",
			Name:      "subscribers",
			Help:      "Currently registered session observers.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.updates, m.broadcastsSent, m.broadcastsReceived,
			m.decodeFailures, m.subscribers)
	}
	return m
}
