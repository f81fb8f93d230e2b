// Package stt turns microphone speech into command text.
//
// A Listener runs one recognition session at a time. Each session yields
// interim transcripts for display and at most one final transcript, which
// the caller forwards to the intent parser. Failures end the session with
// an ErrorCode; nothing is retried automatically.
package stt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventInterim EventType = "interim"
	EventFinal   EventType = "final"
)

type Event struct {
	Type EventType
	Text string
}

// Recognizer runs a single recognition session, calling emit for every
// transcript, and returns when the session ends. It returns nil after a
// final transcript or when ctx is cancelled.
type Recognizer interface {
	Recognize(ctx context.Context, emit func(Event)) error
}

type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

type Options struct {
	// OnEnded is called once per session after the listener is back to Idle.
	OnEnded func(sessionID string)
	Logger  zerolog.Logger
}

type Listener struct {
	rec  Recognizer
	opts Options
	log  zerolog.Logger

	mu        sync.Mutex
	state     State
	sessionID string
	cancel    context.CancelFunc
	interim   string
	lastErr   ErrorCode
}

// NewListener wraps rec; a nil rec means recognition is unsupported.
func NewListener(rec Recognizer, opts Options) *Listener {
	return &Listener{
		rec:  rec,
		opts: opts,
		log:  opts.Logger.With().Str("component", "stt").Logger(),
	}
}

func (l *Listener) Supported() bool { return l.rec != nil }

// StartListening opens a session. It is a no-op, returning false, when a
// session is already open or recognition is unsupported. onFinal receives
// the single final transcript; onError receives the failure code.
func (l *Listener) StartListening(onFinal func(text string), onError func(code ErrorCode)) bool {
	if l.rec == nil {
		return false
	}
	l.mu.Lock()
	if l.state == Listening {
		l.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	l.state = Listening
	l.sessionID = id
	l.cancel = cancel
	l.interim = ""
	l.lastErr = CodeNone
	l.mu.Unlock()

	gaugeListening.Set(1)
	l.log.Debug().Str("session_id", id).Msg("listening")
	go l.run(ctx, cancel, id, onFinal, onError)
	return true
}

// StopListening requests an early stop. The listener reports Idle only once
// the recognizer has actually wound down.
func (l *Listener) StopListening() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
}

func (l *Listener) run(ctx context.Context, cancel context.CancelFunc, id string, onFinal func(string), onError func(ErrorCode)) {
	defer cancel()
	start := time.Now()
	var (
		finalMu    sync.Mutex
		delivered  bool
		sawInterim bool
	)
	emit := func(e Event) {
		text := strings.TrimSpace(e.Text)
		switch e.Type {
		case EventInterim:
			if text == "" {
				return
			}
			l.mu.Lock()
			if l.sessionID == id {
				l.interim = text
			}
			l.mu.Unlock()
			finalMu.Lock()
			if !sawInterim {
				sawInterim = true
				metricTTFTMS.Observe(float64(time.Since(start).Milliseconds()))
			}
			finalMu.Unlock()
		case EventFinal:
			if text == "" {
				metricEmptyFinalSkipped.Inc()
				return
			}
			finalMu.Lock()
			if delivered {
				finalMu.Unlock()
				metricDuplicateFinals.Inc()
				return
			}
			delivered = true
			finalMu.Unlock()
			metricFinalLatencyMS.Observe(float64(time.Since(start).Milliseconds()))
			l.log.Debug().Str("session_id", id).Str("text", text).Msg("final transcript")
			if onFinal != nil {
				onFinal(text)
			}
			// One final per session.
			cancel()
		}
	}

	err := l.rec.Recognize(ctx, emit)

	finalMu.Lock()
	gotFinal := delivered
	finalMu.Unlock()

	code := CodeNone
	if err != nil && !gotFinal && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		code = CodeOf(err)
	}
	outcome := "stopped"
	switch {
	case code != CodeNone:
		outcome = string(code)
		l.log.Warn().Err(err).Str("session_id", id).Str("code", string(code)).Msg("recognition failed")
	case gotFinal:
		outcome = "final"
	}
	metricSessions.WithLabelValues(outcome).Inc()

	l.mu.Lock()
	l.state = Idle
	l.cancel = nil
	l.interim = ""
	l.lastErr = code
	l.mu.Unlock()
	gaugeListening.Set(0)

	if code != CodeNone && onError != nil {
		onError(code)
	}
	if l.opts.OnEnded != nil {
		l.opts.OnEnded(id)
	}
}

func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Listener) Listening() bool { return l.State() == Listening }

// Interim is the latest partial transcript of the open session.
func (l *Listener) Interim() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interim
}

// LastError is the code of the most recent failed session, cleared when a
// new session starts.
func (l *Listener) LastError() ErrorCode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}
