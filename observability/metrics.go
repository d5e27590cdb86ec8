package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the relay's prometheus collectors. They are registered on the
// registerer given to NewMetrics so tests can use a private registry.
type Metrics struct {
	// Connections tracks authenticated sessions currently registered
	Connections prometheus.Gauge

	// Deliveries counts frames handed to the transport, by outcome (ok/failed)
	Deliveries *prometheus.CounterVec

	// Evictions counts handles removed after a failed delivery
	Evictions prometheus.Counter

	// Messages counts persisted chat messages
	Messages prometheus.Counter

	// Events counts inbound socket events by name and result
	Events *prometheus.CounterVec

	// ProcessCPU and ProcessRSS are sampled by the stats worker
	ProcessCPU prometheus.Gauge
	ProcessRSS prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_connections_current",
			Help: "Current number of authenticated connections",
		}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_deliveries_total",
			Help: "Frames handed to the transport by outcome",
		}, []string{"outcome"}),
		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_evictions_total",
			Help: "Connections evicted after a failed delivery",
		}),
		Messages: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Chat messages persisted and broadcast",
		}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_events_total",
			Help: "Inbound socket events by name and result",
		}, []string{"event", "result"}),
		ProcessCPU: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_process_cpu_percent",
			Help: "CPU usage of the relay process",
		}),
		ProcessRSS: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_process_rss_bytes",
			Help: "Resident memory of the relay process",
		}),
	}
}

// NewNopMetrics returns collectors registered nowhere.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
