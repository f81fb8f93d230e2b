package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yogaflow/coach/internal/clock"
	"yogaflow/coach/internal/flow"
	"yogaflow/coach/internal/intent"
)

type fakeSpeaker struct {
	mu      sync.Mutex
	lines   []string
	cancels int
}

func (f *fakeSpeaker) Speak(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, text)
}

func (f *fakeSpeaker) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeSpeaker) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.lines) == 0 {
		return ""
	}
	return f.lines[len(f.lines)-1]
}

type fakeRecorder struct {
	mu       sync.Mutex
	types    []string
	finished int
	complete bool
}

func (f *fakeRecorder) Append(typ string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, typ)
}

func (f *fakeRecorder) count(typ string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.types {
		if t == typ {
			n++
		}
	}
	return n
}

func (f *fakeRecorder) Finish(completed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished++
	f.complete = completed
}

func twoPoses() *flow.Flow {
	return &flow.Flow{
		ID:    "t",
		Title: "Test",
		Poses: []flow.Pose{
			{ID: "a", Name: "Mountain", DurationSec: 10, Cues: []string{"Root down.", "Lengthen."}},
			{ID: "b", Name: "Fold", DurationSec: 15, Cues: []string{"Soften knees."}, Description: "A calm forward fold."},
		},
	}
}

func newTestEngine(t *testing.T, f *flow.Flow, mutate func(*Options)) (*Engine, *clock.Manual, *fakeSpeaker, *fakeRecorder) {
	t.Helper()
	clk := clock.NewManual()
	sp := &fakeSpeaker{}
	rec := &fakeRecorder{}
	opts := Options{Clock: clk, Speaker: sp, Recorder: rec}
	if mutate != nil {
		mutate(&opts)
	}
	e := New(f, opts)
	t.Cleanup(e.Close)
	return e, clk, sp, rec
}

func TestNewStartsPausedOnFirstPose(t *testing.T) {
	e, clk, _, _ := newTestEngine(t, twoPoses(), nil)
	st := e.State()
	assert.Equal(t, 0, st.PoseIndex)
	assert.Equal(t, 10, st.SecondsRemaining)
	assert.True(t, st.Paused)
	assert.Equal(t, 1.0, st.Rate)
	assert.Equal(t, 0, clk.Pending())
}

func TestNewEmptyFlowUsesFallback(t *testing.T) {
	e, _, _, _ := newTestEngine(t, &flow.Flow{ID: "empty"}, nil)
	fb := flow.Fallback()
	assert.Equal(t, fb.ID, e.Flow().ID)
	assert.Equal(t, fb.Poses[0].DurationSec, e.State().SecondsRemaining)
}

func TestPlaybackEndToEnd(t *testing.T) {
	e, clk, sp, rec := newTestEngine(t, twoPoses(), func(o *Options) { o.Autoplay = true })

	clk.Advance(10 * time.Second)
	st := e.State()
	require.Equal(t, 1, st.PoseIndex)
	assert.Equal(t, 15, st.SecondsRemaining)
	assert.False(t, st.Paused)
	assert.Equal(t, "Next: Fold. Soften knees.", sp.last())

	clk.Advance(15 * time.Second)
	st = e.State()
	assert.Equal(t, 1, st.PoseIndex)
	assert.True(t, st.Complete)
	assert.True(t, st.Paused)
	assert.Equal(t, 0, st.SecondsRemaining)
	assert.Equal(t, lineComplete, sp.last())
	assert.Equal(t, 0, clk.Pending())
	assert.Equal(t, 0, rec.finished, "completion alone does not seal the session")

	e.Close()
	assert.Equal(t, 1, rec.finished)
	assert.True(t, rec.complete)
}

func TestPauseStopsTicks(t *testing.T) {
	e, clk, sp, _ := newTestEngine(t, twoPoses(), func(o *Options) { o.Autoplay = true })
	clk.Advance(3 * time.Second)
	e.Pause()
	assert.Equal(t, 0, clk.Pending())
	assert.Equal(t, 1, sp.cancels)
	assert.Equal(t, linePaused, sp.last())

	clk.Advance(time.Minute)
	st := e.State()
	assert.Equal(t, 0, st.PoseIndex)
	assert.Equal(t, 7, st.SecondsRemaining)

	e.Resume()
	assert.Equal(t, "Mountain. Root down.", sp.last())
	clk.Advance(time.Second)
	assert.Equal(t, 6, e.State().SecondsRemaining)
}

func TestNextAtLastPoseIsIdempotent(t *testing.T) {
	e, _, sp, rec := newTestEngine(t, twoPoses(), nil)
	e.Next()
	e.Next()
	e.Next()
	st := e.State()
	assert.Equal(t, 1, st.PoseIndex)
	assert.True(t, st.Complete)

	n := 0
	for _, l := range sp.lines {
		if l == lineComplete {
			n++
		}
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, rec.count("completed"))
	assert.Equal(t, 0, rec.finished)
}

func TestNextRacingTickDoesNotSkip(t *testing.T) {
	f := twoPoses()
	f.Poses = append(f.Poses, flow.Pose{ID: "c", Name: "Rest", DurationSec: 5})
	e, clk, _, _ := newTestEngine(t, f, func(o *Options) { o.Autoplay = true })

	clk.Advance(9 * time.Second)
	// The tick due at 10s is superseded by the command.
	e.Next()
	clk.Advance(time.Second)
	st := e.State()
	assert.Equal(t, 1, st.PoseIndex)
	assert.Equal(t, 14, st.SecondsRemaining)
}

func TestPrevClampsAtZero(t *testing.T) {
	e, _, sp, _ := newTestEngine(t, twoPoses(), nil)
	before := len(sp.lines)
	e.Prev()
	assert.Equal(t, 0, e.State().PoseIndex)
	assert.Len(t, sp.lines, before)

	e.Next()
	e.Prev()
	assert.Equal(t, 0, e.State().PoseIndex)
	assert.Equal(t, 10, e.State().SecondsRemaining)
	assert.Equal(t, "Previous: Mountain. Root down.", sp.last())
}

func TestSetRateClamps(t *testing.T) {
	e, _, sp, _ := newTestEngine(t, twoPoses(), nil)
	for i := 0; i < 10; i++ {
		e.SetRate(DefaultRateStep)
	}
	assert.Equal(t, DefaultRateMax, e.State().Rate)
	assert.Equal(t, lineFastest, sp.last())

	for i := 0; i < 10; i++ {
		e.Dispatch(intent.Intent{Kind: intent.SetRate, Direction: intent.Slower})
	}
	assert.Equal(t, DefaultRateMin, e.State().Rate)
	assert.Equal(t, lineSlowest, sp.last())
}

func TestRateScalesTickInterval(t *testing.T) {
	e, clk, _, _ := newTestEngine(t, twoPoses(), func(o *Options) { o.Autoplay = true })
	e.SetRate(1.0)
	require.Equal(t, 2.0, e.State().Rate)

	// 2x rate means a 500ms tick.
	clk.Advance(2 * time.Second)
	assert.Equal(t, 6, e.State().SecondsRemaining)
}

func TestMinIntervalBoundsTick(t *testing.T) {
	e, clk, _, _ := newTestEngine(t, twoPoses(), func(o *Options) {
		o.Autoplay = true
		o.MinInterval = 800 * time.Millisecond
	})
	e.SetRate(1.0)
	clk.Advance(1600 * time.Millisecond)
	assert.Equal(t, 8, e.State().SecondsRemaining)
}

func TestRepeatResetsCountdown(t *testing.T) {
	e, clk, sp, _ := newTestEngine(t, twoPoses(), func(o *Options) { o.Autoplay = true })
	clk.Advance(4 * time.Second)
	e.Handle("one more time")
	st := e.State()
	assert.Equal(t, 0, st.PoseIndex)
	assert.Equal(t, 10, st.SecondsRemaining)
	assert.Equal(t, "Repeating Mountain. Root down. Lengthen.", sp.last())
}

func TestQueryTime(t *testing.T) {
	f := twoPoses()
	f.Poses[0].DurationSec = 75
	e, _, sp, _ := newTestEngine(t, f, nil)
	e.Handle("how long left?")
	assert.Equal(t, "There are 1:15 remaining.", sp.last())
	assert.Equal(t, 75, e.State().SecondsRemaining)
}

func TestResumeAfterCompleteRestarts(t *testing.T) {
	e, _, sp, _ := newTestEngine(t, twoPoses(), nil)
	e.Next()
	e.Next()
	require.True(t, e.State().Complete)

	e.Resume()
	st := e.State()
	assert.False(t, st.Complete)
	assert.False(t, st.Paused)
	assert.Equal(t, 0, st.PoseIndex)
	assert.Equal(t, "Starting again: Mountain. Root down.", sp.last())
}

func TestExplainWithoutResponderUsesDescription(t *testing.T) {
	e, _, sp, _ := newTestEngine(t, twoPoses(), nil)
	e.Explain("why this pose")
	assert.Equal(t, lineFallbackReply, sp.last())

	e.Next()
	e.Chat("hi")
	assert.Equal(t, "A calm forward fold.", sp.last())
}

type blockingResponder struct {
	release chan struct{}
	reply   string
	err     error
	calls   chan context.Context
}

func (b *blockingResponder) Answer(ctx context.Context, _ flow.Pose, _ intent.Kind, _ string) (string, error) {
	b.calls <- ctx
	select {
	case <-b.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return b.reply, b.err
}

func TestResponderAnswerIsSpoken(t *testing.T) {
	r := &blockingResponder{release: make(chan struct{}), reply: "Hamstrings lengthen here.", calls: make(chan context.Context, 1)}
	e, _, sp, _ := newTestEngine(t, twoPoses(), func(o *Options) { o.Responder = r })

	e.Explain("why does this pose engage hamstrings?")
	<-r.calls
	close(r.release)
	assert.Eventually(t, func() bool { return sp.last() == "Hamstrings lengthen here." }, time.Second, 5*time.Millisecond)
}

func TestResponderCancelledByCommand(t *testing.T) {
	r := &blockingResponder{release: make(chan struct{}), reply: "late answer", calls: make(chan context.Context, 1)}
	e, _, sp, _ := newTestEngine(t, twoPoses(), func(o *Options) { o.Responder = r })

	e.Chat("tell me something")
	ctx := <-r.calls
	e.Next()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("responder context was not cancelled")
	}
	close(r.release)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "Next: Fold. Soften knees.", sp.last())
}

func TestResponderErrorFallsBack(t *testing.T) {
	r := &blockingResponder{release: make(chan struct{}), err: errors.New("boom"), calls: make(chan context.Context, 1)}
	e, _, sp, _ := newTestEngine(t, twoPoses(), func(o *Options) { o.Responder = r })
	e.Next()

	e.Explain("what does this stretch")
	<-r.calls
	close(r.release)
	assert.Eventually(t, func() bool { return sp.last() == "A calm forward fold." }, time.Second, 5*time.Millisecond)
}

func TestCloseIsTerminal(t *testing.T) {
	e, clk, sp, rec := newTestEngine(t, twoPoses(), func(o *Options) { o.Autoplay = true })
	e.Close()
	assert.Equal(t, 0, clk.Pending())
	assert.Equal(t, 1, rec.finished)
	assert.False(t, rec.complete)

	n := len(sp.lines)
	e.Next()
	e.Resume()
	clk.Advance(time.Minute)
	assert.Len(t, sp.lines, n)
	assert.Equal(t, 0, e.State().PoseIndex)
	e.Close()
	assert.Equal(t, 1, rec.finished)
}

func TestSnapshotProgress(t *testing.T) {
	e, clk, _, _ := newTestEngine(t, twoPoses(), func(o *Options) { o.Autoplay = true })
	clk.Advance(5 * time.Second)
	s := e.Snapshot()
	assert.Equal(t, "0:05", s.Remaining)
	assert.Equal(t, "Fold", s.NextName)
	assert.Equal(t, 15, s.NextDuration)
	assert.InDelta(t, 50.0, s.PoseProgress, 0.01)
	assert.InDelta(t, 20.0, s.FlowProgress, 0.01)
	assert.Equal(t, 2, s.PoseCount)

	e.Next()
	e.Next()
	s = e.Snapshot()
	assert.Empty(t, s.NextName)
	assert.Equal(t, 100.0, s.FlowProgress)
}

func TestConcurrentCommandsKeepStateInBounds(t *testing.T) {
	e, clk, _, _ := newTestEngine(t, twoPoses(), func(o *Options) { o.Autoplay = true })
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				switch (i + j) % 4 {
				case 0:
					e.Next()
				case 1:
					e.Prev()
				case 2:
					e.SetRate(0.25)
				default:
					e.SetRate(-0.25)
				}
			}
		}(i)
	}
	clk.Advance(30 * time.Second)
	wg.Wait()
	st := e.State()
	assert.GreaterOrEqual(t, st.PoseIndex, 0)
	assert.LessOrEqual(t, st.PoseIndex, 1)
	assert.GreaterOrEqual(t, st.Rate, DefaultRateMin)
	assert.LessOrEqual(t, st.Rate, DefaultRateMax)
}

func TestSecondRunIsRecordedAndReportedOnClose(t *testing.T) {
	e, clk, _, rec := newTestEngine(t, twoPoses(), func(o *Options) { o.Autoplay = true })

	clk.Advance(25 * time.Second)
	require.True(t, e.State().Complete)
	first := e.Snapshot().PoseVisit

	e.Resume()
	st := e.State()
	assert.Equal(t, 0, st.PoseIndex)
	assert.False(t, st.Complete)
	assert.Greater(t, e.Snapshot().PoseVisit, first)

	clk.Advance(25 * time.Second)
	require.True(t, e.State().Complete)
	assert.Equal(t, 2, rec.count("completed"))
	assert.Equal(t, 1, rec.count("restarted"))
	assert.Equal(t, 0, rec.finished)

	e.Close()
	assert.Equal(t, 1, rec.finished)
	assert.True(t, rec.complete)
}

// engineRecorder reads the engine back from Finish, which only works when
// Finish runs without the engine lock held.
type engineRecorder struct {
	e        *Engine
	finished chan State
}

func (r *engineRecorder) Append(string, map[string]any) {}

func (r *engineRecorder) Finish(bool) { r.finished <- r.e.State() }

func TestFinishRunsOutsideEngineLock(t *testing.T) {
	rec := &engineRecorder{finished: make(chan State, 1)}
	e := New(twoPoses(), Options{Clock: clock.NewManual(), Recorder: rec})
	rec.e = e

	done := make(chan struct{})
	go func() {
		e.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close deadlocked while finishing the recorder")
	}
	st := <-rec.finished
	assert.Equal(t, 0, st.PoseIndex)
}
