package playback

import (
	"fmt"
	"strings"

	"yogaflow/coach/internal/flow"
)

const (
	lineComplete      = "Practice complete. Nice work."
	linePaused        = "Paused."
	lineSlower        = "Slowing down."
	lineFaster        = "A touch quicker."
	lineSlowest       = "This is already the slowest pace."
	lineFastest       = "This is already the quickest pace."
	lineFallbackReply = "I can only respond to simple commands like next, previous, or pause."
)

// FormatClock renders seconds as M:SS.
func FormatClock(sec int) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%d:%02d", sec/60, sec%60)
}

func joinLine(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func poseLine(prefix string, p flow.Pose) string {
	name := p.Name
	if name != "" {
		name += "."
	}
	if prefix != "" {
		prefix += ":"
	}
	return joinLine(prefix, name, p.FirstCue())
}

func repeatLine(p flow.Pose) string {
	return joinLine("Repeating "+p.Name+".", strings.Join(p.Cues, " "))
}

func timeLine(sec int) string {
	return fmt.Sprintf("There are %s remaining.", FormatClock(sec))
}

func fallbackReply(p flow.Pose) string {
	if d := strings.TrimSpace(p.Description); d != "" {
		return d
	}
	return lineFallbackReply
}
