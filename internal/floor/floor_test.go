package floor

import "testing"

func TestBargeInTriggersStop(t *testing.T) {
	f := New()
	f.OnTTSStarted("u1", 1000)
	d := f.OnListenStart(1500)
	if !d.ShouldStop || d.Reason != "barge_in" || d.StopUtteranceID != "u1" {
		t.Fatalf("expected stop on barge-in, got %+v", d)
	}
	if d.SpokenMs != 500 {
		t.Fatalf("expected 500ms spoken before barge-in, got %d", d.SpokenMs)
	}
	if f.BargeIns() != 1 {
		t.Fatalf("expected 1 barge-in, got %d", f.BargeIns())
	}
}

func TestListenIdleDoesNothing(t *testing.T) {
	f := New()
	d := f.OnListenStart(1000)
	if d.ShouldStop {
		t.Fatalf("should not stop when idle")
	}
	if f.BargeIns() != 0 {
		t.Fatalf("idle listen is not a barge-in")
	}
}

func TestTTSStoppedClearsSpeaking(t *testing.T) {
	f := New()
	f.OnTTSStarted("u1", 1000)
	f.OnTTSStopped("u1")
	if f.Speaking() {
		t.Fatalf("expected floor released")
	}
	d := f.OnListenStart(2500)
	if d.ShouldStop {
		t.Fatalf("should not request stop after tts stopped")
	}
}

func TestStaleStopKeepsNewerUtterance(t *testing.T) {
	f := New()
	f.OnTTSStarted("u1", 1000)
	f.OnTTSStarted("u2", 1100)
	f.OnTTSStopped("u1")
	if !f.Speaking() {
		t.Fatalf("u2 still holds the floor")
	}
	d := f.OnListenStart(1200)
	if !d.ShouldStop || d.StopUtteranceID != "u2" || d.SpokenMs != 100 {
		t.Fatalf("expected stop of u2 after 100ms, got %+v", d)
	}
}
