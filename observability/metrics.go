// Package observability exposes relay metrics and the admin endpoints.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chat_relay"

// Metrics owns its registry so that several servers (tests) can coexist.
type Metrics struct {
	Registry *prometheus.Registry

	ConnectionsTotal  prometheus.Counter
	ConnectionsActive prometheus.Gauge
	SessionsBound     prometheus.Gauge
	FramesIn          *prometheus.CounterVec
	FramesOut         *prometheus.CounterVec
	FramingErrors     prometheus.Counter
	Deliveries        *prometheus.CounterVec
	SlowConsumers     prometheus.Counter
	Evictions         prometheus.Counter
	CensoredMessages  prometheus.Counter
	StoreErrors       prometheus.Counter
	HandleDuration    *prometheus.HistogramVec

	ProcessCPUPercent prometheus.Gauge
	ProcessRSSBytes   prometheus.Gauge
	Goroutines        prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total accepted connections",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Open connections",
		}),
		SessionsBound: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_bound",
			Help:      "Logged-in users bound in the registry",
		}),
		FramesIn: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames received by message type",
		}, []string{"type"}),
		FramesOut: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written by message type",
		}, []string{"type"}),
		FramingErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "framing_errors_total",
			Help:      "Connections closed on a framing error",
		}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Relayed messages by kind (direct, group) and result (delivered, offline)",
		}, []string{"kind", "result"}),
		SlowConsumers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_consumers_total",
			Help:      "Sessions closed because their outbound queue was full",
		}),
		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Sessions replaced by a newer login of the same user",
		}),
		CensoredMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "censored_messages_total",
			Help:      "Messages whose content was censored",
		}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Requests answered with an internal error",
		}),
		HandleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handle_duration_seconds",
			Help:      "Time spent handling one request",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"type"}),
		ProcessCPUPercent: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_cpu_percent",
			Help:      "CPU usage of the relay process",
		}),
		ProcessRSSBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_rss_bytes",
			Help:      "Resident memory of the relay process",
		}),
		Goroutines: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Live goroutines",
		}),
	}
}
