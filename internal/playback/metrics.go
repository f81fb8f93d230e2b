package playback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_commands_total",
		Help: "Commands dispatched to the playback engine by intent kind",
	}, []string{"kind"})

	metricAutoAdvance = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playback_auto_advance_total",
		Help: "Pose changes triggered by the countdown rather than by a command",
	})

	metricStaleTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playback_stale_ticks_total",
		Help: "Tick callbacks dropped because a newer schedule or a pause superseded them",
	})

	metricStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_state_transitions_total",
		Help: "Playback mode transitions",
	}, []string{"from", "to"})

	metricAnswers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_answers_total",
		Help: "Explain/chat answers by source (responder, fallback, cancelled)",
	}, []string{"source"})
)
