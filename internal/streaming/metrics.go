package streaming

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds streaming-core instrumentation, mirroring the teacher's
// metrics.Metrics shape and Namespace/Subsystem convention
// (momoshtrem/streaming -> streamcore/streaming) but scoped to the
// picker/stream/provider operations this module actually performs.
type Metrics struct {
	Seeks             *prometheus.CounterVec // labels: direction=forward|backward
	RequestsIssued    *prometheus.CounterVec // labels: band=urgent|prefetch|fallthrough
	RequestsCancelled prometheus.Counter
	ActiveStreams     prometheus.Gauge
	ReadWaitDuration  prometheus.Histogram
	ReadBytes         prometheus.Counter
}

// NewMetrics creates and registers streaming-core metrics with reg. Safe
// to call with a fresh prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Seeks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamcore",
			Subsystem: "streaming",
			Name:      "seeks_total",
			Help:      "Seek operations by direction. High backward rate indicates rebuffering.",
		}, []string{"direction"}),
		RequestsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamcore",
			Subsystem: "streaming",
			Name:      "requests_issued_total",
			Help:      "Block requests issued by the streaming picker, by priority band.",
		}, []string{"band"}),
		RequestsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamcore",
			Subsystem: "streaming",
			Name:      "requests_cancelled_total",
			Help:      "In-flight requests cancelled because a seek moved them out of the Urgent window.",
		}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streamcore",
			Subsystem: "streaming",
			Name:      "active_streams",
			Help:      "Number of currently open LocalStreams (0 or 1 per provider).",
		}),
		ReadWaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "streamcore",
			Subsystem: "streaming",
			Name:      "read_wait_seconds",
			Help:      "Time a Read call spent suspended waiting for its piece to verify.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ReadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamcore",
			Subsystem: "streaming",
			Name:      "read_bytes_total",
			Help:      "Total bytes returned by LocalStream.Read.",
		}),
	}

	reg.MustRegister(
		m.Seeks,
		m.RequestsIssued,
		m.RequestsCancelled,
		m.ActiveStreams,
		m.ReadWaitDuration,
		m.ReadBytes,
	)

	return m
}
