package flow

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"
)

var ErrInvalidPose = errors.New("invalid pose")

// Load reads a flow from a YAML or JSON file, strips markup from its text
// and validates it. A file with zero poses is not an error; Resolve swaps
// in the fallback flow.
func Load(path string) (Flow, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Flow{}, fmt.Errorf("read flow %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes a flow document. YAML is a superset of JSON so both work.
func Parse(b []byte) (Flow, error) {
	var f Flow
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Flow{}, fmt.Errorf("decode flow: %w", err)
	}
	f = Clean(f)
	if err := Validate(f); err != nil {
		return Flow{}, err
	}
	return f, nil
}

// Validate checks pose durations and intensities.
func Validate(f Flow) error {
	for i, p := range f.Poses {
		if p.DurationSec <= 0 {
			return fmt.Errorf("pose %d (%s): durationSec must be positive: %w", i, p.ID, ErrInvalidPose)
		}
		if p.Intensity != 0 && (p.Intensity < 1 || p.Intensity > 5) {
			return fmt.Errorf("pose %d (%s): intensity %d out of 1-5: %w", i, p.ID, p.Intensity, ErrInvalidPose)
		}
	}
	return nil
}

// Clean returns a copy of f with markup removed from names, cues and
// descriptions. Generated flows sometimes carry HTML fragments.
func Clean(f Flow) Flow {
	out := Flow{ID: f.ID, Title: StripHTML(f.Title), Poses: make([]Pose, 0, len(f.Poses))}
	for _, p := range f.Poses {
		c := p
		c.Name = StripHTML(p.Name)
		c.Description = StripHTML(p.Description)
		if len(p.Cues) > 0 {
			c.Cues = make([]string, 0, len(p.Cues))
			for _, cue := range p.Cues {
				c.Cues = append(c.Cues, StripHTML(cue))
			}
		}
		if len(p.Focus) > 0 {
			c.Focus = append([]string(nil), p.Focus...)
		}
		if c.ID == "" {
			c.ID = strings.ToLower(strings.ReplaceAll(c.Name, " ", "-"))
		}
		out.Poses = append(out.Poses, c)
	}
	return out
}

// StripHTML returns the text content of s with whitespace collapsed.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
