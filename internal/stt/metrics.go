package stt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_sessions_total",
		Help: "Recognition sessions by outcome (final, stopped, not-allowed, no-speech, network)",
	}, []string{"outcome"})

	gaugeListening = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stt_listening",
		Help: "1 while a recognition session is open",
	})

	metricAudioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_audio_bytes_total",
		Help: "Total audio bytes sent to the provider",
	})

	metricCircuitOpens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_circuit_open_total",
		Help: "Circuit breaker open events",
	})

	metricConnectMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stt_connect_ms",
		Help:    "Time to establish provider connection (ms)",
		Buckets: prometheus.ExponentialBuckets(10, 1.8, 10),
	})

	metricTTFTMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stt_ttft_ms",
		Help:    "Time from session start to first interim transcript (ms)",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 10),
	})

	metricFinalLatencyMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stt_final_latency_ms",
		Help:    "Time from session start to final transcript (ms)",
		Buckets: prometheus.ExponentialBuckets(100, 1.6, 10),
	})

	metricFinalEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_final_emitted_total",
		Help: "Final transcripts emitted by source (provider, interim_fallback)",
	}, []string{"source"})

	metricEmptyFinalSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_empty_final_skipped_total",
		Help: "Empty final transcripts skipped",
	})

	metricDuplicateFinals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_duplicate_finals_total",
		Help: "Finals dropped because the session already delivered one",
	})
)
