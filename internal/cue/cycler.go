// Package cue rotates the display cue for the current pose.
package cue

import (
	"sync"
	"time"

	"yogaflow/coach/internal/clock"
)

// DefaultInterval is how long each cue stays on screen.
const DefaultInterval = 3500 * time.Millisecond

// Cycler derives the displayed cue from a pose's cue list. It never touches
// playback state; callers feed it the pose key and an active flag (playing
// and not held by the reader) through Sync.
type Cycler struct {
	mu       sync.Mutex
	clk      clock.Clock
	interval time.Duration
	onChange func(string)

	key    string
	cues   []string
	idx    int
	active bool

	timer   clock.Timer
	gen     uint64
	stopped bool
}

// New returns a Cycler. onChange, when set, is called with the new cue after
// every timed advance; it runs without the Cycler's lock held.
func New(interval time.Duration, clk clock.Clock, onChange func(string)) *Cycler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Cycler{clk: clk, interval: interval, onChange: onChange}
}

// Sync updates the cue source and returns the cue to display. A new key
// restarts at the first cue with a full interval.
func (c *Cycler) Sync(key string, cues []string, active bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return c.current()
	}

	changed := false
	if key != c.key {
		c.key = key
		c.cues = append(c.cues[:0:0], cues...)
		c.idx = 0
		changed = true
	}
	if active != c.active {
		c.active = active
		changed = true
	}
	if changed {
		c.arm()
	}
	return c.current()
}

// Current returns the displayed cue.
func (c *Cycler) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current()
}

// Stop halts rotation for good.
func (c *Cycler) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.disarm()
}

func (c *Cycler) current() string {
	if len(c.cues) == 0 {
		return ""
	}
	return c.cues[c.idx]
}

func (c *Cycler) arm() {
	c.disarm()
	if !c.active || len(c.cues) < 2 {
		return
	}
	gen := c.gen
	c.timer = c.clk.AfterFunc(c.interval, func() { c.fire(gen) })
}

func (c *Cycler) disarm() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

func (c *Cycler) fire(gen uint64) {
	c.mu.Lock()
	if c.stopped || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.idx = (c.idx + 1) % len(c.cues)
	cur := c.current()
	c.arm()
	cb := c.onChange
	c.mu.Unlock()

	if cb != nil {
		cb(cur)
	}
}
