package coach

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricBargeInSpokenMS = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "coach_barge_in_spoken_ms",
	Help:    "How long narration had played when push-to-talk interrupted it",
	Buckets: prometheus.ExponentialBuckets(50, 1.8, 10),
})
