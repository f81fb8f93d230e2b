package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualFiresInDeadlineOrder(t *testing.T) {
	m := NewManual()
	var got []string
	m.AfterFunc(2*time.Second, func() { got = append(got, "b") })
	m.AfterFunc(time.Second, func() { got = append(got, "a") })
	m.AfterFunc(2*time.Second, func() { got = append(got, "c") })

	m.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"a"}, got)

	m.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, time.Unix(0, 0).Add(2500*time.Millisecond), m.Now())
}

func TestManualStop(t *testing.T) {
	m := NewManual()
	fired := false
	tm := m.AfterFunc(time.Second, func() { fired = true })
	assert.Equal(t, 1, m.Pending())
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	m.Advance(time.Minute)
	assert.False(t, fired)
	assert.Equal(t, 0, m.Pending())
}

func TestManualChainsTimersScheduledByCallbacks(t *testing.T) {
	m := NewManual()
	n := 0
	var step func()
	step = func() {
		n++
		m.AfterFunc(time.Second, step)
	}
	m.AfterFunc(time.Second, step)

	m.Advance(5 * time.Second)
	assert.Equal(t, 5, n)
	assert.Equal(t, 1, m.Pending())
}

func TestFiredTimerStopReportsFalse(t *testing.T) {
	m := NewManual()
	tm := m.AfterFunc(0, func() {})
	m.Advance(0)
	assert.False(t, tm.Stop())
}
