package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchedTotal counts dispatch attempts by delivery type and outcome
	// (processed, retry, parked, released).
	DispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytsoob_outbox_dispatched_total",
			Help: "Total number of outbox dispatch attempts",
		},
		[]string{"delivery_type", "outcome"},
	)

	// PublishDuration tracks bus publish latency.
	PublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ytsoob_outbox_publish_duration_seconds",
			Help:    "Duration of outbox publishes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"delivery_type"},
	)

	// ClaimedBatchSize tracks how many records each poll claimed.
	ClaimedBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ytsoob_outbox_claimed_batch_size",
			Help:    "Number of outbox records claimed per poll",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)
)
