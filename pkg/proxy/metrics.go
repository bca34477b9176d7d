package proxy

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for one client process.
type Metrics struct {
	registry *prometheus.Registry

	bytesReceived     prometheus.Counter
	bytesSent         prometheus.Counter
	inflatedBytes     prometheus.Counter
	textSegments      prometheus.Counter
	textBytes         prometheus.Counter
	commandsProcessed prometheus.Counter
	subnegotiations   prometheus.Counter
	gmcpMessages      prometheus.Counter
	compressionActive prometheus.Gauge
}

// NewMetrics creates and registers the client metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mudlink_bytes_received_total",
			Help: "Raw bytes read from the server connection.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mudlink_bytes_sent_total",
			Help: "Bytes written to the server connection.",
		}),
		inflatedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mudlink_inflated_bytes_total",
			Help: "Bytes produced by MCCPv2 decompression.",
		}),
		textSegments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mudlink_text_segments_total",
			Help: "Decoded clean-text segments delivered to sinks.",
		}),
		textBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mudlink_text_bytes_total",
			Help: "Decoded clean-text bytes delivered to sinks.",
		}),
		commandsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mudlink_telnet_commands_total",
			Help: "Complete inbound telnet command sequences processed.",
		}),
		subnegotiations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mudlink_subnegotiations_total",
			Help: "Complete inbound telnet subnegotiations dispatched.",
		}),
		gmcpMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mudlink_gmcp_messages_total",
			Help: "Inbound GMCP messages parsed.",
		}),
		compressionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mudlink_compression_active",
			Help: "Whether an MCCPv2 stream is currently active.",
		}),
	}

	m.registry.MustRegister(
		m.bytesReceived,
		m.bytesSent,
		m.inflatedBytes,
		m.textSegments,
		m.textBytes,
		m.commandsProcessed,
		m.subnegotiations,
		m.gmcpMessages,
		m.compressionActive,
	)
	return m
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
