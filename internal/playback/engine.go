// Package playback advances a practitioner through a timed flow of poses.
//
// The Engine owns the playback state. Every command handler and every tick
// runs under one mutex, so a handler observes and commits state atomically.
// Two independent sources (the countdown and a voice or keyboard command)
// may still race to call Next; bounds are evaluated on committed state and
// superseded ticks are dropped by generation, so a race never skips a pose.
package playback

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"yogaflow/coach/internal/clock"
	"yogaflow/coach/internal/flow"
	"yogaflow/coach/internal/intent"
)

// Speaker receives narration. Implementations must not block and must not
// call back into the engine.
type Speaker interface {
	Speak(text string)
	Cancel()
}

// Responder answers explain and chat requests about the current pose.
type Responder interface {
	Answer(ctx context.Context, pose flow.Pose, kind intent.Kind, query string) (string, error)
}

// Recorder collects session events for the analytics collaborator. Finish
// is called once, from Close, with completed set when at least one run
// through the flow reached the end.
type Recorder interface {
	Append(typ string, payload map[string]any)
	Finish(completed bool)
}

// State is the mutable playback state.
type State struct {
	PoseIndex        int
	SecondsRemaining int
	Paused           bool
	// Complete is set when Next is requested on the last pose. The engine
	// is paused while complete.
	Complete bool
	Rate     float64
}

type Options struct {
	RateMin  float64
	RateMax  float64
	RateStep float64
	// MinInterval bounds the tick interval from below at high rates.
	MinInterval      time.Duration
	Autoplay         bool
	Speaker          Speaker
	Responder        Responder
	ResponderTimeout time.Duration
	Recorder         Recorder
	Clock            clock.Clock
	Logger           zerolog.Logger
}

const (
	DefaultRateMin     = 0.5
	DefaultRateMax     = 2.0
	DefaultRateStep    = 0.25
	DefaultMinInterval = 500 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.RateMin <= 0 {
		o.RateMin = DefaultRateMin
	}
	if o.RateMax <= 0 {
		o.RateMax = DefaultRateMax
	}
	if o.RateMin > o.RateMax {
		o.RateMin, o.RateMax = o.RateMax, o.RateMin
	}
	if o.RateStep <= 0 {
		o.RateStep = DefaultRateStep
	}
	if o.MinInterval <= 0 {
		o.MinInterval = DefaultMinInterval
	}
	if o.ResponderTimeout <= 0 {
		o.ResponderTimeout = 8 * time.Second
	}
	if o.Speaker == nil {
		o.Speaker = nopSpeaker{}
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	return o
}

type nopSpeaker struct{}

func (nopSpeaker) Speak(string) {}
func (nopSpeaker) Cancel()      {}

type nopRecorder struct{}

func (nopRecorder) Append(string, map[string]any) {}
func (nopRecorder) Finish(bool)                   {}

type Engine struct {
	mu   sync.Mutex
	opts Options
	log  zerolog.Logger

	flow flow.Flow
	st   State
	mode string

	timer   clock.Timer
	tickGen uint64

	answerCancel context.CancelFunc
	answerSeq    uint64

	visited     map[int]bool
	visits      int
	completions int
	closed      bool
}

// New resolves f (an empty or nil flow becomes the built-in fallback) and
// returns a paused engine positioned on the first pose, unless Autoplay is set.
func New(f *flow.Flow, opts Options) *Engine {
	opts = opts.withDefaults()
	resolved := flow.Resolve(f)
	e := &Engine{
		opts:    opts,
		flow:    resolved,
		visited: map[int]bool{0: true},
		mode:    "paused",
	}
	e.log = opts.Logger.With().Str("component", "playback").Str("flow", resolved.ID).Logger()
	e.st = State{
		PoseIndex:        0,
		SecondsRemaining: resolved.Poses[0].Duration(),
		Paused:           true,
		Rate:             e.clampRate(1.0),
	}
	opts.Recorder.Append("session_started", map[string]any{"flow_id": resolved.ID, "poses": len(resolved.Poses)})
	if opts.Autoplay {
		e.mu.Lock()
		e.resume()
		e.mu.Unlock()
	}
	return e
}

// Flow returns the resolved flow the engine plays.
func (e *Engine) Flow() flow.Flow { return e.flow }

// State returns a copy of the committed state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st
}

// Handle parses raw input and dispatches it. The parsed intent is returned
// for display.
func (e *Engine) Handle(raw string) intent.Intent {
	in := intent.Parse(raw)
	e.Dispatch(in)
	return in
}

// Dispatch routes an intent to its handler.
func (e *Engine) Dispatch(in intent.Intent) {
	metricCommands.WithLabelValues(string(in.Kind)).Inc()
	switch in.Kind {
	case intent.Next:
		e.Next()
	case intent.Prev:
		e.Prev()
	case intent.Pause:
		e.Pause()
	case intent.Resume:
		e.Resume()
	case intent.Repeat:
		e.Repeat()
	case intent.SetRate:
		e.SetRate(float64(in.Direction) * e.opts.RateStep)
	case intent.QueryTime:
		e.QueryTime()
	case intent.Explain:
		e.Explain(in.Query)
	case intent.Chat:
		e.Chat(in.Text)
	}
}

func (e *Engine) Next() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.cancelAnswer()
	e.advance("user")
	e.syncMode()
}

func (e *Engine) Prev() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.cancelAnswer()
	if e.st.PoseIndex == 0 {
		return
	}
	e.moveTo(e.st.PoseIndex-1, "user")
	e.say(poseLine("Previous", e.pose()))
	e.syncMode()
}

func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.st.Paused {
		return
	}
	e.cancelAnswer()
	e.st.Paused = true
	e.stopTick()
	e.opts.Speaker.Cancel()
	e.say(linePaused)
	e.record("paused", nil)
	e.syncMode()
}

func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.st.Paused {
		return
	}
	e.cancelAnswer()
	e.resume()
}

func (e *Engine) resume() {
	prefix := ""
	if e.st.Complete {
		// Resuming a finished session starts it over.
		e.record("restarted", map[string]any{"run": e.completions + 1})
		e.moveTo(0, "restart")
		prefix = "Starting again"
	}
	e.st.Paused = false
	e.say(poseLine(prefix, e.pose()))
	e.record("resumed", nil)
	e.schedule()
	e.syncMode()
}

func (e *Engine) Repeat() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.cancelAnswer()
	p := e.pose()
	e.st.SecondsRemaining = p.Duration()
	e.st.Complete = false
	e.say(repeatLine(p))
	e.record("repeat", map[string]any{"pose_id": p.ID})
	if !e.st.Paused {
		e.schedule()
	}
	e.syncMode()
}

// SetRate adjusts the playback rate by delta, clamped to the configured range.
func (e *Engine) SetRate(delta float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || delta == 0 {
		return
	}
	e.cancelAnswer()
	old := e.st.Rate
	e.st.Rate = e.clampRate(old + delta)
	switch {
	case e.st.Rate == old && delta < 0:
		e.say(lineSlowest)
	case e.st.Rate == old:
		e.say(lineFastest)
	case delta < 0:
		e.say(lineSlower)
	default:
		e.say(lineFaster)
	}
	if e.st.Rate != old {
		e.record("rate_changed", map[string]any{"rate": e.st.Rate})
		if !e.st.Paused {
			e.schedule()
		}
	}
}

func (e *Engine) QueryTime() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.cancelAnswer()
	e.say(timeLine(e.st.SecondsRemaining))
}

func (e *Engine) Explain(query string) { e.answer(intent.Explain, query) }

func (e *Engine) Chat(text string) { e.answer(intent.Chat, text) }

// Close tears the engine down: the tick and any pending answer are
// cancelled, narration stops and the session is reported as finished.
// Every handler is a no-op afterwards. The Recorder is finished after the
// engine lock is released.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.cancelAnswer()
	e.stopTick()
	e.opts.Speaker.Cancel()
	e.closed = true
	completed := e.completions > 0
	e.record("closed", map[string]any{"pose_index": e.st.PoseIndex, "completions": e.completions})
	e.syncMode()
	e.mu.Unlock()

	e.opts.Recorder.Finish(completed)
}

// advance moves to the next pose, or enters the complete state when there
// is none. Calling it again while complete changes nothing.
func (e *Engine) advance(source string) {
	if e.st.PoseIndex < len(e.flow.Poses)-1 {
		e.moveTo(e.st.PoseIndex+1, source)
		e.say(poseLine("Next", e.pose()))
		return
	}
	if e.st.Complete {
		return
	}
	e.st.Complete = true
	e.st.Paused = true
	e.st.SecondsRemaining = 0
	e.stopTick()
	e.completions++
	e.say(lineComplete)
	e.record("completed", map[string]any{"visited": len(e.visited), "run": e.completions})
	e.log.Info().Int("poses", len(e.flow.Poses)).Int("run", e.completions).Msg("flow complete")
}

// moveTo changes the pose index and re-seeds the countdown; a running tick
// is rescheduled so the new pose gets a full first interval.
func (e *Engine) moveTo(idx int, source string) {
	e.st.PoseIndex = idx
	e.visits++
	e.st.SecondsRemaining = e.pose().Duration()
	e.st.Complete = false
	e.visited[idx] = true
	e.record("pose_changed", map[string]any{"index": idx, "pose_id": e.pose().ID, "source": source})
	if !e.st.Paused {
		e.schedule()
	}
}

func (e *Engine) pose() flow.Pose { return e.flow.Poses[e.st.PoseIndex] }

func (e *Engine) interval() time.Duration {
	d := time.Duration(float64(time.Second) / e.st.Rate)
	if d < e.opts.MinInterval {
		d = e.opts.MinInterval
	}
	return d
}

func (e *Engine) schedule() {
	e.stopTick()
	gen := e.tickGen
	e.timer = e.opts.Clock.AfterFunc(e.interval(), func() { e.tick(gen) })
}

func (e *Engine) stopTick() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.tickGen++
}

func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.st.Paused || gen != e.tickGen {
		metricStaleTicks.Inc()
		return
	}
	e.timer = nil
	if e.st.SecondsRemaining <= 1 {
		metricAutoAdvance.Inc()
		e.advance("auto")
		e.syncMode()
		return
	}
	e.st.SecondsRemaining--
	e.schedule()
}

func (e *Engine) clampRate(r float64) float64 {
	r = math.Round(r*100) / 100
	return math.Max(e.opts.RateMin, math.Min(e.opts.RateMax, r))
}

func (e *Engine) say(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	e.opts.Speaker.Speak(text)
}

func (e *Engine) record(typ string, payload map[string]any) {
	e.opts.Recorder.Append(typ, payload)
}

func (e *Engine) currentMode() string {
	switch {
	case e.closed:
		return "closed"
	case e.st.Complete:
		return "complete"
	case e.st.Paused:
		return "paused"
	}
	return "playing"
}

// syncMode records a transition metric when the derived mode changed.
func (e *Engine) syncMode() {
	to := e.currentMode()
	if to == e.mode {
		return
	}
	metricStateTransitions.WithLabelValues(e.mode, to).Inc()
	e.log.Debug().Str("from", e.mode).Str("to", to).Int("pose", e.st.PoseIndex).Msg("state")
	e.mode = to
}
