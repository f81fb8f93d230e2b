package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_requests_total",
		Help: "Responder requests by result (ok, empty, error)",
	}, []string{"result"})

	metricLatencyMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "llm_latency_ms",
		Help:    "Chat completion latency in milliseconds",
		Buckets: prometheus.ExponentialBuckets(100, 1.6, 12),
	})
)
