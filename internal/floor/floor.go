// Package floor decides who holds the audio floor: the narrator or the
// practitioner pressing push-to-talk.
package floor

import "sync"

// Decision represents the action the floor manager wants to take.
type Decision struct {
	ShouldStop      bool
	StopUtteranceID string
	Reason          string // e.g., "barge_in"
	// SpokenMs is how long the interrupted utterance had been playing.
	SpokenMs int64
}

type Manager struct {
	mu                 sync.Mutex
	speaking           bool
	activeUtteranceID  string
	lastTTSStartedTsMs int64
	bargeIns           int
}

func New() *Manager { return &Manager{} }

func (m *Manager) OnTTSStarted(utteranceID string, tsMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speaking = true
	m.activeUtteranceID = utteranceID
	m.lastTTSStartedTsMs = tsMs
}

// OnTTSStopped clears the floor only for the active utterance; a stop
// reported late by an utterance that was already replaced is ignored.
func (m *Manager) OnTTSStopped(utteranceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if utteranceID != m.activeUtteranceID {
		return
	}
	m.speaking = false
	m.activeUtteranceID = ""
}

// OnListenStart is called when the practitioner starts talking to the coach.
func (m *Manager) OnListenStart(tsMs int64) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.speaking {
		return Decision{}
	}
	// barge-in: stop immediately
	m.bargeIns++
	spoken := tsMs - m.lastTTSStartedTsMs
	if spoken < 0 {
		spoken = 0
	}
	return Decision{ShouldStop: true, StopUtteranceID: m.activeUtteranceID, Reason: "barge_in", SpokenMs: spoken}
}

func (m *Manager) Speaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speaking
}

// BargeIns counts interruptions since the manager was created.
func (m *Manager) BargeIns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bargeIns
}
