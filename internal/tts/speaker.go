// Package tts narrates text through a pluggable speech synthesizer.
//
// Speaker is a hard-interrupt voice: a new utterance cancels the one in
// flight rather than queueing behind it. Synthesis runs on its own goroutine
// so Speak never blocks the caller.
package tts

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrUnavailable is returned by synthesizers that cannot produce audio in
// this environment.
var ErrUnavailable = errors.New("tts: synthesis unavailable")

// Utterance is one synthesis request.
type Utterance struct {
	ID     string
	Text   string
	Voice  Voice
	Rate   float64
	Pitch  float64
	Volume float64
}

// Synthesizer renders an utterance to audio. Synthesize blocks until the
// audio has played or ctx is cancelled.
type Synthesizer interface {
	Voices(ctx context.Context) ([]Voice, error)
	Synthesize(ctx context.Context, u Utterance) error
}

type Options struct {
	VoiceName string
	Rate      float64
	Pitch     float64
	Volume    float64
	Preferred []*regexp.Regexp
	// OnStart and OnStop observe utterance lifetimes. OnStart runs before
	// Speak returns; OnStop runs on the synthesis goroutine with the outcome.
	OnStart func(id string)
	OnStop  func(id, outcome string)
	Logger  zerolog.Logger
}

const (
	OutcomeCompleted   = "completed"
	OutcomeInterrupted = "interrupted"
	OutcomeFailed      = "failed"
)

type active struct {
	u      Utterance
	cancel context.CancelFunc
}

type Speaker struct {
	synth Synthesizer
	opts  Options
	log   zerolog.Logger

	mu         sync.Mutex
	cur        *active
	voiceName  string
	volume     float64
	lastVolume float64

	voicesMu     sync.Mutex
	voices       []Voice
	voicesLoaded bool
}

// NewSpeaker wraps synth. A nil synth yields a Speaker whose Speak is a
// silent no-op.
func NewSpeaker(synth Synthesizer, opts Options) *Speaker {
	if opts.Rate <= 0 {
		opts.Rate = 1.0
	}
	if opts.Pitch <= 0 {
		opts.Pitch = 0.95
	}
	if opts.Volume < 0 || opts.Volume > 1 {
		opts.Volume = 1.0
	}
	if opts.Preferred == nil {
		opts.Preferred = DefaultPreferred
	}
	s := &Speaker{
		synth:      synth,
		opts:       opts,
		log:        opts.Logger.With().Str("component", "tts").Logger(),
		voiceName:  opts.VoiceName,
		volume:     opts.Volume,
		lastVolume: 1.0,
	}
	if opts.Volume > 0 {
		s.lastVolume = opts.Volume
	}
	return s
}

// Supported reports whether narration can be produced at all.
func (s *Speaker) Supported() bool { return s.synth != nil }

func (s *Speaker) Speak(text string) { s.SpeakAs(text, "") }

// SpeakAs cancels the current utterance and starts text with the named
// voice, or the configured voice when voiceName is empty.
func (s *Speaker) SpeakAs(text, voiceName string) {
	text = strings.TrimSpace(text)
	if s.synth == nil || text == "" {
		return
	}

	s.mu.Lock()
	s.cancelLocked()
	if voiceName == "" {
		voiceName = s.voiceName
	}
	ctx, cancel := context.WithCancel(context.Background())
	u := Utterance{
		ID:     uuid.NewString(),
		Text:   text,
		Rate:   s.opts.Rate,
		Pitch:  s.opts.Pitch,
		Volume: s.volume,
	}
	s.cur = &active{u: u, cancel: cancel}
	if s.opts.OnStart != nil {
		s.opts.OnStart(u.ID)
	}
	s.mu.Unlock()

	go s.run(ctx, cancel, u, voiceName)
}

func (s *Speaker) run(ctx context.Context, cancel context.CancelFunc, u Utterance, voiceName string) {
	defer cancel()
	start := time.Now()
	if v, ok := SelectVoice(s.loadVoices(ctx), voiceName, s.opts.Preferred); ok {
		u.Voice = v
	}

	err := s.synth.Synthesize(ctx, u)

	outcome := OutcomeCompleted
	switch {
	case ctx.Err() != nil:
		outcome = OutcomeInterrupted
	case err != nil:
		outcome = OutcomeFailed
		s.log.Warn().Err(err).Str("utterance_id", u.ID).Msg("synthesis failed")
	}
	ttsUtterancesTotal.WithLabelValues(outcome).Inc()
	ttsTotalDurationMS.Observe(float64(time.Since(start).Milliseconds()))

	s.mu.Lock()
	if s.cur != nil && s.cur.u.ID == u.ID {
		s.cur = nil
	}
	s.mu.Unlock()

	if s.opts.OnStop != nil {
		s.opts.OnStop(u.ID, outcome)
	}
}

// loadVoices fetches the voice list once. A failed fetch is retried on the
// next utterance.
func (s *Speaker) loadVoices(ctx context.Context) []Voice {
	s.voicesMu.Lock()
	defer s.voicesMu.Unlock()
	if s.voicesLoaded {
		return s.voices
	}
	vs, err := s.synth.Voices(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("voice list unavailable")
		return nil
	}
	s.voices, s.voicesLoaded = vs, true
	return vs
}

// Voices returns the synthesizer's voices.
func (s *Speaker) Voices(ctx context.Context) ([]Voice, error) {
	if s.synth == nil {
		return nil, ErrUnavailable
	}
	if vs := s.loadVoices(ctx); vs != nil {
		return vs, nil
	}
	return s.synth.Voices(ctx)
}

// Active returns the utterance currently in flight; ok is false when silent.
func (s *Speaker) Active() (Utterance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return Utterance{}, false
	}
	return s.cur.u, true
}

// Cancel interrupts whatever is being spoken.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Stop interrupts the utterance with the given id if it is still the
// active one. It reports whether anything was stopped.
func (s *Speaker) Stop(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil || s.cur.u.ID != id {
		return false
	}
	s.cancelLocked()
	return true
}

func (s *Speaker) cancelLocked() {
	if s.cur == nil {
		return
	}
	s.cur.cancel()
	s.cur = nil
}

func (s *Speaker) SetVoice(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voiceName = strings.TrimSpace(name)
}

// SetVolume clamps v to [0,1]. It applies from the next utterance.
func (s *Speaker) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
	if v > 0 {
		s.lastVolume = v
	}
}

// ToggleMute silences narration, or restores the last audible volume.
func (s *Speaker) ToggleMute() (muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.volume > 0 {
		s.lastVolume = s.volume
		s.volume = 0
		return true
	}
	s.volume = s.lastVolume
	return false
}

func (s *Speaker) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}
