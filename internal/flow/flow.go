package flow

import "strings"

// Pose is a single step of a practice sequence.
type Pose struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	DurationSec int      `json:"durationSec" yaml:"durationSec"`
	Cues        []string `json:"cues,omitempty" yaml:"cues,omitempty"`
	Focus       []string `json:"focus,omitempty" yaml:"focus,omitempty"`
	Intensity   int      `json:"intensity,omitempty" yaml:"intensity,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Flow is an ordered, named sequence of poses. A Flow handed to the
// playback engine is treated as immutable.
type Flow struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Poses []Pose `json:"poses" yaml:"poses"`
}

// CueList returns the pose cues; an empty list reads as one blank cue.
func (p Pose) CueList() []string {
	if len(p.Cues) == 0 {
		return []string{""}
	}
	out := make([]string, len(p.Cues))
	copy(out, p.Cues)
	return out
}

// FirstCue returns the first cue or "" when the pose has none.
func (p Pose) FirstCue() string {
	if len(p.Cues) == 0 {
		return ""
	}
	return p.Cues[0]
}

// Duration returns the hold time in seconds, never below one.
func (p Pose) Duration() int {
	if p.DurationSec < 1 {
		return 1
	}
	return p.DurationSec
}

// Key identifies the pose content. Two poses with the same content share a
// key, so readers tracking pose changes combine it with the position.
func (p Pose) Key() string {
	return p.ID + "|" + strings.Join(p.Cues, "|")
}

// TotalSeconds sums the hold time of every pose.
func (f Flow) TotalSeconds() int {
	total := 0
	for _, p := range f.Poses {
		total += p.Duration()
	}
	return total
}

// Resolve returns f unchanged when it has at least one pose and the
// built-in fallback flow otherwise.
func Resolve(f *Flow) Flow {
	if f == nil || len(f.Poses) == 0 {
		return Fallback()
	}
	return *f
}

// Fallback returns the built-in sampler sequence. Each call returns a fresh copy.
func Fallback() Flow {
	return Flow{
		ID:    "demo-hpf",
		Title: "Gentle HPF Sampler",
		Poses: []Pose{
			{ID: "breath", Name: "Seated Breath", DurationSec: 30, Cues: []string{"Close your eyes. Inhale through your nose, exhale with a soft sigh."}, Focus: []string{"breath", "parasympathetic"}, Intensity: 1},
			{ID: "child", Name: "Child's Pose", DurationSec: 45, Cues: []string{"Sink your hips to heels, lengthen through fingertips."}, Focus: []string{"hips", "spine"}, Intensity: 1},
			{ID: "ddog", Name: "Downward Facing Dog", DurationSec: 45, Cues: []string{"Spread your fingers; press through palms; soften your knees; long spine."}, Focus: []string{"hamstrings", "shoulders"}, Intensity: 2},
			{ID: "rag", Name: "Ragdoll", DurationSec: 30, Cues: []string{"Shake your head yes and no; release your jaw; bend knees generously."}, Focus: []string{"hamstrings", "erector spinae"}, Intensity: 1},
			{ID: "mt", Name: "Mountain", DurationSec: 30, Cues: []string{"Root your feet; lift your chest; soften your ribs; lengthen the back of your neck."}, Focus: []string{"postural core"}, Intensity: 1},
		},
	}
}
