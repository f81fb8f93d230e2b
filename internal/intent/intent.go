// Package intent maps free text from the keyboard or a speech transcript
// to a playback command.
package intent

import (
	"regexp"
	"strings"
)

type Kind string

const (
	Next      Kind = "next"
	Prev      Kind = "prev"
	Pause     Kind = "pause"
	Resume    Kind = "resume"
	Repeat    Kind = "repeat"
	SetRate   Kind = "set_rate"
	QueryTime Kind = "query_time"
	Explain   Kind = "explain"
	Chat      Kind = "chat"
)

// Direction of a SetRate intent.
type Direction int

const (
	Slower Direction = -1
	Faster Direction = 1
)

// Intent is a structured command. Direction is set for SetRate, Query for
// Explain and Text for Chat.
type Intent struct {
	Kind      Kind
	Direction Direction
	Query     string
	Text      string
}

type rule struct {
	re   *regexp.Regexp
	make func(input, lower string) Intent
}

func fixed(i Intent) func(string, string) Intent {
	return func(string, string) Intent { return i }
}

// Order matters: first match wins.
var rules = []rule{
	{regexp.MustCompile(`\b(next|continue|go on|what'?s next)\b`), fixed(Intent{Kind: Next})},
	{regexp.MustCompile(`\b(prev(ious)?|back|go back)\b`), fixed(Intent{Kind: Prev})},
	{regexp.MustCompile(`\b(pau?se|hold up|stop for a sec)\b`), fixed(Intent{Kind: Pause})},
	{regexp.MustCompile(`\b(resume|play|start)\b`), fixed(Intent{Kind: Resume})},
	{regexp.MustCompile(`\b(repeat|again|one more time)\b`), fixed(Intent{Kind: Repeat})},
	{regexp.MustCompile(`\b(slower|slow down|too fast)\b`), fixed(Intent{Kind: SetRate, Direction: Slower})},
	{regexp.MustCompile(`\b(faster|speed up)\b`), fixed(Intent{Kind: SetRate, Direction: Faster})},
	{regexp.MustCompile(`\b(how long|time left|timer)\b`), fixed(Intent{Kind: QueryTime})},
	{
		regexp.MustCompile(`\b(why|what|how)\b.*?\b(pose|muscle|alignment|benefit|engage|stretch|compress)`),
		func(_, lower string) Intent { return Intent{Kind: Explain, Query: lower} },
	},
}

// Parse never fails: input that matches no rule becomes a Chat intent
// carrying the verbatim text. Parse has no shared mutable state and is
// safe for concurrent use.
func Parse(input string) Intent {
	lower := strings.ToLower(strings.TrimSpace(input))
	// Normalize typographic apostrophes from speech engines.
	lower = strings.ReplaceAll(lower, "’", "'")
	for _, r := range rules {
		if r.re.MatchString(lower) {
			return r.make(input, lower)
		}
	}
	return Intent{Kind: Chat, Text: input}
}

func (i Intent) String() string {
	switch i.Kind {
	case SetRate:
		if i.Direction == Slower {
			return "set_rate(slower)"
		}
		return "set_rate(faster)"
	case Explain:
		return "explain(" + i.Query + ")"
	case Chat:
		return "chat(" + i.Text + ")"
	}
	return string(i.Kind)
}
