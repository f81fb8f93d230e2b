package playback

import "yogaflow/coach/internal/flow"

// Snapshot is the read-only view rendered by front ends.
type Snapshot struct {
	State
	FlowID    string
	Title     string
	Pose      flow.Pose
	PoseCount int
	// PoseVisit increments on every pose change, including a move to a pose
	// with the same content and a restart onto the same index.
	PoseVisit int
	// NextName is empty on the last pose.
	NextName     string
	NextDuration int
	Remaining    string
	// PoseProgress and FlowProgress are percentages in [0,100].
	PoseProgress float64
	FlowProgress float64
	Closed       bool
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.pose()
	s := Snapshot{
		State:     e.st,
		FlowID:    e.flow.ID,
		Title:     e.flow.Title,
		Pose:      p,
		PoseCount: len(e.flow.Poses),
		PoseVisit: e.visits,
		Remaining: FormatClock(e.st.SecondsRemaining),
		Closed:    e.closed,
	}
	if e.st.PoseIndex+1 < len(e.flow.Poses) {
		n := e.flow.Poses[e.st.PoseIndex+1]
		s.NextName, s.NextDuration = n.Name, n.Duration()
	}

	dur := p.Duration()
	elapsed := dur - e.st.SecondsRemaining
	s.PoseProgress = clampPct(float64(elapsed) / float64(dur) * 100)

	total := e.flow.TotalSeconds()
	done := elapsed
	for i := 0; i < e.st.PoseIndex; i++ {
		done += e.flow.Poses[i].Duration()
	}
	if e.st.Complete {
		done = total
		s.PoseProgress = 100
	}
	if total > 0 {
		s.FlowProgress = clampPct(float64(done) / float64(total) * 100)
	}
	return s
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
