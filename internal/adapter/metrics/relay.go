package metrics

import "github.com/prometheus/client_golang/prometheus"

// Dedup write outcomes.
const (
	DedupFirstWrite = "first_write"
	DedupDuplicate  = "duplicate"
	DedupError      = "error"
)

// RelayMetrics holds Prometheus metrics for ingest and fan-out.
type RelayMetrics struct {
	BlocksReceived    prometheus.Counter
	BlocksRejected    prometheus.Counter
	Deliveries        prometheus.Counter
	DeliveryFailures  prometheus.Counter
	DedupWrites       *prometheus.CounterVec
	RegistryTopics    prometheus.Gauge
	BroadcastDuration prometheus.Histogram
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		BlocksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "blocks_received_total",
			Help:      "Total number of blocks accepted by the ingest endpoint.",
		}),
		BlocksRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "blocks_rejected_total",
			Help:      "Total number of blocks dropped as malformed.",
		}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "deliveries_total",
			Help:      "Total number of newTransaction frames queued to sessions.",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "delivery_failures_total",
			Help:      "Total number of deliveries dropped for a single session.",
		}),
		DedupWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "dedup_writes_total",
			Help:      "Total number of dedup store writes, by outcome.",
		}, []string{"outcome"}),
		RegistryTopics: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "registry_topics",
			Help:      "Number of topics with at least one subscriber.",
		}),
		BroadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "broadcast_duration_seconds",
			Help:      "Time spent fanning out one notification.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
	}

	reg.MustRegister(m.BlocksReceived, m.BlocksRejected, m.Deliveries, m.DeliveryFailures, m.DedupWrites, m.RegistryTopics, m.BroadcastDuration)
	return m
}
