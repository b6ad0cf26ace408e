package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricNameSpace = "nftmarket"
)

var (
	chainCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Name:      "chain_calls_total",
			Help:      "read calls made against the chain RPC",
		},
		[]string{"method", "outcome"},
	)
	chainCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricNameSpace,
			Name:      "chain_call_duration_seconds",
			Help:      "latency of chain reads including retries",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	ordersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Name:      "orders_created_total",
			Help:      "orders built and stored",
		},
		[]string{"side"},
	)
	orderVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Name:      "order_verifications_total",
			Help:      "verification attempts by outcome",
		},
		[]string{"outcome"},
	)
	outboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Name:      "outbox_events_total",
			Help:      "outbox events relayed to kafka",
		},
		[]string{"event_type", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		chainCalls,
		chainCallDuration,
		ordersCreated,
		orderVerifications,
		outboxPublished,
	)
}

func ChainCall(method, outcome string, elapsed time.Duration) {
	chainCalls.WithLabelValues(method, outcome).Inc()
	chainCallDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func OrderCreated(side string) {
	ordersCreated.WithLabelValues(side).Inc()
}

func OrderVerification(outcome string) {
	orderVerifications.WithLabelValues(outcome).Inc()
}

func OutboxEvent(eventType, outcome string) {
	outboxPublished.WithLabelValues(eventType, outcome).Inc()
}
