package playback

import (
	"context"
	"strings"

	"yogaflow/coach/internal/flow"
	"yogaflow/coach/internal/intent"
)

// answer speaks a reply to an explain or chat request. With no Responder
// the pose description (or a canned line) is spoken immediately. Otherwise
// the Responder runs off the lock and its reply is dropped if any other
// command arrived in the meantime.
func (e *Engine) answer(kind intent.Kind, query string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.cancelAnswer()
	p := e.pose()
	e.record(string(kind), map[string]any{"pose_id": p.ID, "query": query})

	if e.opts.Responder == nil {
		metricAnswers.WithLabelValues("fallback").Inc()
		e.say(fallbackReply(p))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.ResponderTimeout)
	e.answerCancel = cancel
	seq := e.answerSeq
	go e.awaitAnswer(ctx, cancel, seq, p, kind, query)
}

func (e *Engine) awaitAnswer(ctx context.Context, cancel context.CancelFunc, seq uint64, p flow.Pose, kind intent.Kind, query string) {
	defer cancel()
	text, err := e.opts.Responder.Answer(ctx, p, kind, query)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || seq != e.answerSeq {
		return
	}
	e.answerCancel = nil
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			e.log.Warn().Err(err).Str("kind", string(kind)).Msg("responder failed, using fallback")
		}
		metricAnswers.WithLabelValues("fallback").Inc()
		e.say(fallbackReply(p))
		return
	}
	metricAnswers.WithLabelValues("responder").Inc()
	e.say(text)
}

// cancelAnswer abandons a pending Responder call. Callers hold e.mu.
func (e *Engine) cancelAnswer() {
	e.answerSeq++
	if e.answerCancel != nil {
		e.answerCancel()
		e.answerCancel = nil
		metricAnswers.WithLabelValues("cancelled").Inc()
	}
}
