package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the ingestion server.
type Metrics struct {
	// Transport metrics
	TCPConnections   prometheus.Counter
	UDPPackets       prometheus.Counter
	PayloadsReceived *prometheus.CounterVec
	QueueSize        prometheus.Gauge
	ActiveConns      prometheus.Gauge

	// Pipeline metrics
	EventsDecoded    prometheus.Counter
	DecodeFallbacks  prometheus.Counter
	DecodeErrors     prometheus.Counter
	ProtocolErrors   prometheus.Counter
	FragmentsExpired prometheus.Counter
	PendingMessages  prometheus.Gauge
	EventBytes       prometheus.Histogram

	// Sink metrics
	EventsWritten prometheus.Counter
	SinkDrops     prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics against reg. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TCPConnections: factory.NewCounter(prometheus.CounterOpts{
			Name: "loglib_tcp_connections_total",
			Help: "Total number of accepted TCP connections",
		}),
		UDPPackets: factory.NewCounter(prometheus.CounterOpts{
			Name: "loglib_udp_packets_total",
			Help: "Total number of UDP datagrams received",
		}),
		PayloadsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loglib_payloads_received_total",
			Help: "Total number of payloads dispatched into the pipeline",
		}, []string{"transport"}),
		QueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "loglib_packet_queue_size",
			Help: "Current number of datagrams in the processing queue",
		}),
		ActiveConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "loglib_active_connections",
			Help: "Current number of open TCP connections",
		}),

		EventsDecoded: factory.NewCounter(prometheus.CounterOpts{
			Name: "loglib_events_decoded_total",
			Help: "Total number of payloads decoded as structured events",
		}),
		DecodeFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "loglib_decode_fallbacks_total",
			Help: "Total number of payloads delivered as raw fallbacks",
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "loglib_decode_errors_total",
			Help: "Total number of payloads dropped for invalid text encoding",
		}),
		ProtocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "loglib_protocol_errors_total",
			Help: "Total number of continuation-framing violations",
		}),
		FragmentsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "loglib_fragments_expired_total",
			Help: "Total number of stale partial messages removed by the sweep",
		}),
		PendingMessages: factory.NewGauge(prometheus.GaugeOpts{
			Name: "loglib_pending_messages",
			Help: "Current number of senders with a partial message buffered",
		}),
		EventBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loglib_event_size_bytes",
			Help:    "Size of complete message payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8), // 64B to ~1MB
		}),

		EventsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "loglib_events_written_total",
			Help: "Total number of entries handed to the sink",
		}),
		SinkDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "loglib_sink_drops_total",
			Help: "Total number of entries dropped because the sink queue was full",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loglib_http_requests_total",
			Help: "Total number of HTTP API requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loglib_http_request_duration_seconds",
			Help:    "Duration of HTTP API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordHTTPRequest records an API request with its duration.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}
