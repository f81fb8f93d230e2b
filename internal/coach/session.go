// Package coach wires one practice session together: typed and spoken input
// go through the intent parser into the playback engine, narration goes
// out through the speaker, and push-to-talk takes the floor from the
// narrator.
package coach

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"yogaflow/coach/internal/clock"
	"yogaflow/coach/internal/cue"
	"yogaflow/coach/internal/events"
	"yogaflow/coach/internal/flow"
	"yogaflow/coach/internal/floor"
	"yogaflow/coach/internal/intent"
	"yogaflow/coach/internal/playback"
	"yogaflow/coach/internal/stt"
	"yogaflow/coach/internal/tts"
)

type Options struct {
	Flow     *flow.Flow
	Playback playback.Options

	CueInterval time.Duration

	// A nil Synthesizer or Recognizer disables that direction of voice.
	Synthesizer tts.Synthesizer
	Speaker     tts.Options
	Recognizer  stt.Recognizer
	Responder   playback.Responder
	Sink        events.Sink

	Clock clock.Clock
	// OnChange is called whenever something visible changed outside a
	// direct call, e.g. a cue rotated or a transcript arrived.
	OnChange func()
	Logger   zerolog.Logger
}

// View is everything a front end renders.
type View struct {
	playback.Snapshot
	SessionID    string
	Cue          string
	Narration    string
	Listening    bool
	Interim      string
	VoiceError   stt.ErrorCode
	Speaking     bool
	Volume       float64
	CanSpeak     bool
	CanListen    bool
	LastInput    string
	LastIntent   intent.Intent
	HoldingCues  bool
	BargeInCount int
}

type Session struct {
	engine   *playback.Engine
	speaker  *tts.Speaker
	listener *stt.Listener
	floor    *floor.Manager
	cues     *cue.Cycler
	events   *events.Session
	log      zerolog.Logger
	onChange func()

	mu         sync.Mutex
	lastInput  string
	lastIntent intent.Intent
	narration  string
	holdCues   bool
	closed     bool
}

func New(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	log := opts.Logger.With().Str("component", "coach").Logger()
	s := &Session{floor: floor.New(), log: log, onChange: opts.OnChange}

	resolved := flow.Resolve(opts.Flow)
	s.events = events.NewSession(resolved.ID, opts.Sink, opts.Logger)
	s.log = s.log.With().Str("session_id", s.events.ID()).Logger()

	spk := opts.Speaker
	spk.Logger = opts.Logger
	spk.OnStart = func(id string) { s.floor.OnTTSStarted(id, time.Now().UnixMilli()) }
	spk.OnStop = func(id, _ string) {
		s.floor.OnTTSStopped(id)
		s.notify()
	}
	s.speaker = tts.NewSpeaker(opts.Synthesizer, spk)

	s.listener = stt.NewListener(opts.Recognizer, stt.Options{
		Logger: opts.Logger,
		OnEnded: func(string) { s.notify() },
	})

	s.cues = cue.New(opts.CueInterval, opts.Clock, func(string) { s.notify() })

	po := opts.Playback
	po.Speaker = narrator{s}
	po.Recorder = s.events
	po.Clock = opts.Clock
	po.Logger = opts.Logger
	if opts.Responder != nil {
		po.Responder = opts.Responder
	}
	s.engine = playback.New(&resolved, po)
	s.syncCues()

	s.log.Info().Str("flow", resolved.ID).Int("poses", len(resolved.Poses)).
		Bool("voice_out", s.speaker.Supported()).Bool("voice_in", s.listener.Supported()).
		Msg("session started")
	return s
}

// Submit feeds typed text to the engine. Blank input is ignored.
func (s *Session) Submit(raw string) (intent.Intent, bool) {
	return s.submit(raw, "text")
}

func (s *Session) submit(raw, source string) (intent.Intent, bool) {
	if strings.TrimSpace(raw) == "" {
		return intent.Intent{}, false
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return intent.Intent{}, false
	}
	s.mu.Unlock()

	in := intent.Parse(raw)
	s.events.Append("input", map[string]any{"source": source, "kind": string(in.Kind)})
	s.engine.Dispatch(in)

	s.mu.Lock()
	s.lastInput = raw
	s.lastIntent = in
	s.mu.Unlock()
	s.syncCues()
	return in, true
}

// PushToTalk opens the microphone, interrupting narration if it is live.
// It reports whether a listening session started.
func (s *Session) PushToTalk() bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed || !s.listener.Supported() || s.listener.Listening() {
		return false
	}

	dec := s.floor.OnListenStart(time.Now().UnixMilli())
	if dec.ShouldStop && s.speaker.Stop(dec.StopUtteranceID) {
		s.events.Append("barge_in", map[string]any{"utterance_id": dec.StopUtteranceID, "spoken_ms": dec.SpokenMs})
		metricBargeInSpokenMS.Observe(float64(dec.SpokenMs))
		s.log.Debug().Str("utterance_id", dec.StopUtteranceID).Int64("spoken_ms", dec.SpokenMs).Msg("barge-in")
	}

	return s.listener.StartListening(
		func(text string) {
			s.submit(text, "voice")
			s.notify()
		},
		func(code stt.ErrorCode) {
			s.events.Append("voice_error", map[string]any{"code": string(code)})
			s.notify()
		},
	)
}

// ReleaseTalk asks the listener to stop early. A final transcript may still
// arrive before it winds down.
func (s *Session) ReleaseTalk() { s.listener.StopListening() }

// HoldCues freezes cue rotation while the reader is looking at it.
func (s *Session) HoldCues(hold bool) {
	s.mu.Lock()
	s.holdCues = hold
	s.mu.Unlock()
	s.syncCues()
}

func (s *Session) ToggleMute() bool   { return s.speaker.ToggleMute() }
func (s *Session) SetVolume(v float64) { s.speaker.SetVolume(v) }

func (s *Session) Engine() *playback.Engine { return s.engine }

func (s *Session) syncCues() string {
	snap := s.engine.Snapshot()
	s.mu.Lock()
	hold := s.holdCues
	s.mu.Unlock()
	key := fmt.Sprintf("%d|%d|%s", snap.PoseIndex, snap.PoseVisit, snap.Pose.Key())
	return s.cues.Sync(key, snap.Pose.CueList(), !snap.Paused && !snap.Closed && !hold)
}

func (s *Session) View() View {
	cur := s.syncCues()
	snap := s.engine.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		Snapshot:     snap,
		SessionID:    s.events.ID(),
		Cue:          cur,
		Narration:    s.narration,
		Listening:    s.listener.Listening(),
		Interim:      s.listener.Interim(),
		VoiceError:   s.listener.LastError(),
		Speaking:     s.floor.Speaking(),
		Volume:       s.speaker.Volume(),
		CanSpeak:     s.speaker.Supported(),
		CanListen:    s.listener.Supported(),
		LastInput:    s.lastInput,
		LastIntent:   s.lastIntent,
		HoldingCues:  s.holdCues,
		BargeInCount: s.floor.BargeIns(),
	}
}

// Close ends the session and delivers its summary. Safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.listener.StopListening()
	s.cues.Stop()
	s.engine.Close()
	s.log.Info().Msg("session closed")
}

// narrator keeps the last line the engine said so text-only front ends can
// show it.
type narrator struct{ s *Session }

func (n narrator) Speak(text string) {
	n.s.mu.Lock()
	n.s.narration = text
	n.s.mu.Unlock()
	n.s.speaker.Speak(text)
}

func (n narrator) Cancel() { n.s.speaker.Cancel() }

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}
