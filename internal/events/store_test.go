package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	got []Summary
	err error
}

func (c *captureSink) Deliver(s Summary) error {
	c.got = append(c.got, s)
	return c.err
}

func TestAppendAndFinishOnce(t *testing.T) {
	sink := &captureSink{}
	s := NewSession("demo-hpf", sink, zerolog.Nop())
	require.NotEmpty(t, s.ID())

	s.Append("session_started", nil)
	s.Append("pose_changed", map[string]any{"index": 1})
	s.Append("pose_changed", map[string]any{"index": 2})
	s.Append("pose_changed", map[string]any{"index": 1})
	s.Finish(true)
	s.Finish(false)
	s.Append("late", nil)

	require.Len(t, sink.got, 1)
	sum := sink.got[0]
	assert.Equal(t, s.ID(), sum.SessionID)
	assert.Equal(t, "demo-hpf", sum.FlowID)
	assert.True(t, sum.Completed)
	assert.Equal(t, 3, sum.PosesVisited)
	assert.Len(t, sum.Events, 4)
	assert.False(t, sum.EndedAt.Before(sum.StartedAt))
}

func TestEventsCappedWithTruncationMarker(t *testing.T) {
	s := NewSession("f", nil, zerolog.Nop())
	for i := 0; i < MaxEvents; i++ {
		s.Append("tick", map[string]any{"i": i})
	}
	evs := s.Events()
	require.Len(t, evs, MaxEvents)
	assert.Equal(t, "tick", evs[0].Type, "no truncation at exactly the cap")

	for i := MaxEvents; i < MaxEvents+50; i++ {
		s.Append("tick", map[string]any{"i": i})
	}
	evs = s.Events()
	require.Len(t, evs, MaxEvents)
	assert.Equal(t, "events_truncated", evs[0].Type)
	assert.Equal(t, 51, evs[0].Payload["dropped"])
	assert.Equal(t, MaxEvents+49, evs[len(evs)-1].Payload["i"])
	assert.Equal(t, 51, evs[1].Payload["i"])
}

func TestSinkErrorIsNotFatal(t *testing.T) {
	sink := &captureSink{err: errors.New("offline")}
	s := NewSession("f", sink, zerolog.Nop())
	s.Finish(false)
	assert.Len(t, sink.got, 1)
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession("f", &JSONSink{W: &buf}, zerolog.Nop())
	s.Append("paused", nil)
	s.Finish(false)

	var sum Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &sum))
	assert.Equal(t, "f", sum.FlowID)
	assert.Equal(t, "paused", sum.Events[0].Type)
}

func TestSummaryCountsEveryCompletedRun(t *testing.T) {
	sink := &captureSink{}
	s := NewSession("demo-hpf", sink, zerolog.Nop())
	s.Append("completed", map[string]any{"run": 1})
	s.Append("restarted", map[string]any{"run": 2})
	s.Append("completed", map[string]any{"run": 2})
	s.Finish(true)

	require.Len(t, sink.got, 1)
	assert.Equal(t, 2, sink.got[0].Completions)
	assert.True(t, sink.got[0].Completed)
}
