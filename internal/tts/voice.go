package tts

import (
	"regexp"
	"strings"
)

// Voice is one voice a Synthesizer can speak with.
type Voice struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Default bool   `json:"default,omitempty"`
}

// DefaultPreferred ranks voices that read calm instructions well.
var DefaultPreferred = []*regexp.Regexp{
	regexp.MustCompile(`(?i)samantha`),
	regexp.MustCompile(`(?i)google uk english female`),
	regexp.MustCompile(`(?i)google us english`),
	regexp.MustCompile(`(?i)microsoft aria`),
	regexp.MustCompile(`(?i)microsoft jenny`),
	regexp.MustCompile(`(?i)english.*female`),
}

// SelectVoice picks a voice by exact name or id, then by the preferred
// patterns in order, then the first English voice, then the platform
// default. ok is false only when voices is empty.
func SelectVoice(voices []Voice, name string, preferred []*regexp.Regexp) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}
	if name = strings.TrimSpace(name); name != "" {
		for _, v := range voices {
			if strings.EqualFold(v.Name, name) || v.ID == name {
				return v, true
			}
		}
	}
	for _, re := range preferred {
		for _, v := range voices {
			if re.MatchString(v.Name) {
				return v, true
			}
		}
	}
	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Lang), "en") {
			return v, true
		}
	}
	for _, v := range voices {
		if v.Default {
			return v, true
		}
	}
	return voices[0], true
}
