// Package events keeps the per-session event log handed to analytics when
// a practice session ends.
package events

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxEvents caps the log; the oldest events are dropped first and a single
// events_truncated marker records how many.
const MaxEvents = 200

type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type Summary struct {
	SessionID    string    `json:"session_id"`
	FlowID       string    `json:"flow_id"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	Completed    bool      `json:"completed"`
	Completions  int       `json:"completions"`
	PosesVisited int       `json:"poses_visited"`
	Events       []Event   `json:"events"`
}

// Sink receives a session summary exactly once.
type Sink interface {
	Deliver(s Summary) error
}

type Session struct {
	id     string
	flowID string
	sink   Sink
	log    zerolog.Logger
	now    func() time.Time

	mu          sync.Mutex
	startedAt   time.Time
	events      []Event
	dropped     int
	truncatedAt time.Time
	visited     map[int]bool
	completions int
	finished    bool
}

func NewSession(flowID string, sink Sink, log zerolog.Logger) *Session {
	s := &Session{
		id:      uuid.NewString(),
		flowID:  flowID,
		sink:    sink,
		now:     func() time.Time { return time.Now().UTC() },
		visited: map[int]bool{0: true},
	}
	s.log = log.With().Str("component", "events").Str("session_id", s.id).Logger()
	s.startedAt = s.now()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Append(typ string, payload map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	switch typ {
	case "pose_changed":
		if idx, ok := payload["index"].(int); ok {
			s.visited[idx] = true
		}
	case "completed":
		s.completions++
	}
	now := s.now()
	s.events = append(s.events, Event{Type: typ, Timestamp: now, Payload: payload})
	// Keep space for a single truncation warning so the total stays at MaxEvents.
	if over := len(s.events) - (MaxEvents - 1); over > 0 && (s.dropped > 0 || len(s.events) > MaxEvents) {
		s.dropped += over
		s.truncatedAt = now
		s.events = append([]Event(nil), s.events[over:]...)
	}
}

func (s *Session) snapshot() []Event {
	out := make([]Event, 0, len(s.events)+1)
	if s.dropped > 0 {
		out = append(out, Event{Type: "events_truncated", Timestamp: s.truncatedAt, Payload: map[string]any{"dropped": s.dropped, "kept": len(s.events)}})
	}
	return append(out, s.events...)
}

// Events returns a copy of the log.
func (s *Session) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Finish seals the log and delivers the summary. Later calls do nothing.
func (s *Session) Finish(completed bool) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	sum := Summary{
		SessionID:    s.id,
		FlowID:       s.flowID,
		StartedAt:    s.startedAt,
		EndedAt:      s.now(),
		Completed:    completed,
		Completions:  s.completions,
		PosesVisited: len(s.visited),
		Events:       s.snapshot(),
	}
	s.mu.Unlock()

	if s.sink == nil {
		return
	}
	if err := s.sink.Deliver(sum); err != nil {
		s.log.Warn().Err(err).Msg("summary delivery failed")
	}
}

// LogSink writes summaries to the logger.
type LogSink struct{ Log zerolog.Logger }

func (l LogSink) Deliver(s Summary) error {
	l.Log.Info().
		Str("session_id", s.SessionID).
		Str("flow_id", s.FlowID).
		Bool("completed", s.Completed).
		Int("completions", s.Completions).
		Int("poses_visited", s.PosesVisited).
		Int("events", len(s.Events)).
		Dur("duration", s.EndedAt.Sub(s.StartedAt)).
		Msg("session finished")
	return nil
}

// JSONSink writes each summary as one JSON line.
type JSONSink struct {
	mu sync.Mutex
	W  io.Writer
}

func (j *JSONSink) Deliver(s Summary) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return json.NewEncoder(j.W).Encode(s)
}
