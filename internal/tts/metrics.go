package tts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ttsUtterancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_utterances_total",
		Help: "Utterances by outcome (completed, interrupted, failed)",
	}, []string{"outcome"})

	ttsFirstFrameMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_first_frame_ms",
		Help:    "Latency from synthesis request to first audio frame played",
		Buckets: prometheus.ExponentialBuckets(20, 1.6, 10),
	})

	ttsTotalDurationMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_total_duration_ms",
		Help:    "Wall time of an utterance from start to stop in milliseconds",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 12),
	})

	ttsElevenLabsLatencyMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_elevenlabs_latency_ms",
		Help:    "Latency of ElevenLabs API response (first byte)",
		Buckets: prometheus.ExponentialBuckets(20, 1.6, 10),
	})
)
