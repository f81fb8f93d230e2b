// Package capability checks, once at startup, which voice features this
// environment can support.
package capability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"yogaflow/coach/internal/config"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
	// Optional checks do not affect the feature flags.
	Optional bool `json:"optional,omitempty"`
}

type Report struct {
	Synthesis   bool          `json:"speech_synthesis"`
	Recognition bool          `json:"speech_recognition"`
	Responder   bool          `json:"responder"`
	Checks      []CheckResult `json:"checks"`
	CheckedAt   time.Time     `json:"checked_at"`
}

func (r Report) String() string {
	s := fmt.Sprintf("Voice output: %s\nVoice input:  %s\nAnswers:      %s\n", onOff(r.Synthesis), onOff(r.Recognition), onOff(r.Responder))
	for _, c := range r.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

func onOff(b bool) string {
	if b {
		return "available"
	}
	return "unavailable"
}

// Checker holds the seams the checks need.
type Checker struct {
	HTTP     *http.Client
	LookPath func(file string) (string, error)
	// Remote enables network round trips to the providers.
	Remote bool
}

// CheckAll runs every check and derives the feature flags.
func CheckAll(ctx context.Context, cfg config.Config) Report {
	return Checker{Remote: true}.CheckAll(ctx, cfg)
}

func (p Checker) CheckAll(ctx context.Context, cfg config.Config) Report {
	if p.HTTP == nil {
		p.HTTP = http.DefaultClient
	}
	if p.LookPath == nil {
		p.LookPath = exec.LookPath
	}
	var r Report
	switch cfg.Voice.Provider {
	case "console":
		r.Checks = append(r.Checks, CheckResult{Name: "console_voice", OK: true})
		r.Synthesis = true
	case "elevenlabs":
		eleven := p.checkElevenLabs(ctx, cfg)
		player := p.checkCommand("audio_player", cfg.Voice.PlayerCmd)
		r.Checks = append(r.Checks, eleven, player)
		r.Synthesis = eleven.OK && player.OK
	default:
		r.Checks = append(r.Checks, CheckResult{Name: "voice_output", Error: "disabled by VOICE_PROVIDER=none"})
	}

	dg := p.checkDeepgram(ctx, cfg)
	rec := p.checkCommand("audio_recorder", cfg.Deepgram.RecorderCmd)
	r.Checks = append(r.Checks, dg, rec)
	r.Recognition = dg.OK && rec.OK

	llm := CheckResult{Name: "llm", Optional: true}
	if cfg.LLM.APIKey == "" {
		llm.Error = "OPENAI_API_KEY not set; pose descriptions are used instead"
	} else {
		llm.OK = true
	}
	r.Checks = append(r.Checks, llm)
	r.Responder = llm.OK

	r.CheckedAt = time.Now().UTC()
	return r
}

func (p Checker) checkCommand(name, cmdline string) CheckResult {
	start := time.Now()
	result := CheckResult{Name: name}
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		result.Error = "command not configured"
		return result
	}
	if _, err := p.LookPath(fields[0]); err != nil {
		result.Error = fmt.Sprintf("%s not found on PATH", fields[0])
		result.Latency = time.Since(start)
		return result
	}
	result.Latency = time.Since(start)
	result.OK = true
	return result
}

func (p Checker) checkElevenLabs(ctx context.Context, cfg config.Config) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "elevenlabs"}

	if cfg.Eleven.APIKey == "" {
		result.Error = "ELEVENLABS_API_KEY not set"
		return result
	}
	if cfg.Eleven.VoiceID == "" {
		result.Error = "ELEVENLABS_VOICE_ID not set"
		return result
	}
	if !p.Remote {
		result.OK = true
		return result
	}

	base := strings.TrimRight(cfg.Eleven.BaseURL, "/")
	if base == "" {
		base = "https://api.elevenlabs.io"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/voices/%s", base, cfg.Eleven.VoiceID), nil)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		return result
	}
	req.Header.Set("xi-api-key", cfg.Eleven.APIKey)

	resp, err := p.HTTP.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	defer resp.Body.Close()
	result.Latency = time.Since(start)

	switch resp.StatusCode {
	case http.StatusOK:
		result.OK = true
	case http.StatusUnauthorized:
		result.Error = "invalid API key (401)"
	case http.StatusNotFound:
		result.Error = fmt.Sprintf("voice ID %q not found", cfg.Eleven.VoiceID)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return result
}

func (p Checker) checkDeepgram(ctx context.Context, cfg config.Config) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "deepgram"}

	if cfg.Deepgram.APIKey == "" {
		result.Error = "DEEPGRAM_API_KEY not set"
		return result
	}
	if !p.Remote {
		result.OK = true
		return result
	}

	// Listing projects is the cheapest authenticated call.
	base := "https://api.deepgram.com"
	if u := cfg.Deepgram.BaseURL; strings.HasPrefix(u, "ws") {
		base = "http" + strings.TrimPrefix(strings.TrimSuffix(u, "/v1/listen"), "ws")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/projects", nil)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		return result
	}
	req.Header.Set("Authorization", "Token "+cfg.Deepgram.APIKey)

	resp, err := p.HTTP.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	defer resp.Body.Close()
	result.Latency = time.Since(start)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		result.Error = fmt.Sprintf("invalid API key (%d)", resp.StatusCode)
		return result
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body))
		return result
	}
	result.OK = true
	return result
}
