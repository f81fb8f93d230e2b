package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"yogaflow/coach/internal/audio"
)

const defaultElevenBaseURL = "https://api.elevenlabs.io"

// OpenPlayer opens an audio sink for PCM16 mono at sampleRate.
type OpenPlayer func(ctx context.Context, sampleRate int) (io.WriteCloser, error)

// ElevenLabs synthesizes through the ElevenLabs REST API and streams the
// decoded PCM to a player in 20ms frames.
type ElevenLabs struct {
	APIKey  string
	VoiceID string
	ModelID string
	BaseURL string
	HTTP    *http.Client
	Player  OpenPlayer
	// Pace sleeps one frame duration between frames when set.
	Pace bool
	Log  zerolog.Logger
}

// ProcessPlayer returns an OpenPlayer that pipes PCM into an external
// command; {rate} in the template is replaced with the sample rate.
func ProcessPlayer(cmdline string, log zerolog.Logger) OpenPlayer {
	return func(ctx context.Context, sampleRate int) (io.WriteCloser, error) {
		p, err := audio.Start(ctx, "player", cmdline, map[string]string{"rate": strconv.Itoa(sampleRate)}, log)
		if err != nil {
			return nil, err
		}
		p.DiscardStdout()
		return &processSink{p: p}, nil
	}
}

type processSink struct{ p *audio.Process }

func (s *processSink) Write(b []byte) (int, error) { return s.p.Stdin.Write(b) }

func (s *processSink) Close() error {
	_ = s.p.Stdin.Close()
	select {
	case <-s.p.Done():
		return nil
	case <-time.After(audio.StopGrace):
		return s.p.Stop()
	}
}

func (e *ElevenLabs) baseURL() string {
	if e.BaseURL == "" {
		return defaultElevenBaseURL
	}
	return strings.TrimRight(e.BaseURL, "/")
}

func (e *ElevenLabs) client() *http.Client {
	if e.HTTP != nil {
		return e.HTTP
	}
	return http.DefaultClient
}

type elevenVoice struct {
	VoiceID string            `json:"voice_id"`
	Name    string            `json:"name"`
	Labels  map[string]string `json:"labels"`
}

func (e *ElevenLabs) Voices(ctx context.Context) ([]Voice, error) {
	if e.APIKey == "" {
		return nil, fmt.Errorf("missing ELEVENLABS_API_KEY: %w", ErrUnavailable)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL()+"/v1/voices", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", e.APIKey)
	resp, err := e.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("elevenlabs voices: status=%d body=%s", resp.StatusCode, string(b))
	}
	var out struct {
		Voices []elevenVoice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("elevenlabs voices: decode: %w", err)
	}
	voices := make([]Voice, 0, len(out.Voices))
	for _, v := range out.Voices {
		lang := v.Labels["language"]
		if lang == "" {
			lang = "en"
		}
		voices = append(voices, Voice{ID: v.VoiceID, Name: v.Name, Lang: lang, Default: v.VoiceID == e.VoiceID})
	}
	return voices, nil
}

func (e *ElevenLabs) Synthesize(ctx context.Context, u Utterance) error {
	if e.APIKey == "" {
		return fmt.Errorf("missing ELEVENLABS_API_KEY: %w", ErrUnavailable)
	}
	if e.Player == nil {
		return fmt.Errorf("no audio player configured: %w", ErrUnavailable)
	}
	voiceID := u.Voice.ID
	if voiceID == "" {
		voiceID = e.VoiceID
	}
	if voiceID == "" {
		return fmt.Errorf("missing ELEVENLABS_VOICE_ID: %w", ErrUnavailable)
	}

	start := time.Now()
	body := map[string]any{
		"text":           u.Text,
		"voice_settings": map[string]any{"speed": elevenSpeed(u.Rate)},
	}
	if e.ModelID != "" {
		body["model_id"] = e.ModelID
	}
	reqBytes, _ := json.Marshal(body)
	url := fmt.Sprintf("%s/v1/text-to-speech/%s", e.baseURL(), voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", e.APIKey)
	req.Header.Set("accept", "audio/wav")
	req.Header.Set("content-type", "application/json")
	resp, err := e.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	ttsElevenLabsLatencyMS.Observe(float64(time.Since(start).Milliseconds()))
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("elevenlabs: status=%d body=%s", resp.StatusCode, string(b))
	}

	wav, err := readWAVPCM16(resp.Body)
	if err != nil {
		return fmt.Errorf("elevenlabs: decode: %w", err)
	}
	scaleVolume(wav.PCM, u.Volume)

	sink, err := e.Player(ctx, wav.SampleRate)
	if err != nil {
		return fmt.Errorf("open player: %w", err)
	}
	defer sink.Close()

	frameBytes := wav.SampleRate / 50 * 2
	frameDur := 20 * time.Millisecond
	for pos := 0; pos < len(wav.PCM); pos += frameBytes {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := pos + frameBytes
		if end > len(wav.PCM) {
			end = len(wav.PCM)
		}
		if _, err := sink.Write(wav.PCM[pos:end]); err != nil {
			return err
		}
		if pos == 0 {
			ttsFirstFrameMS.Observe(float64(time.Since(start).Milliseconds()))
		}
		if e.Pace {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(frameDur):
			}
		}
	}
	e.Log.Debug().Str("utterance_id", u.ID).Int("bytes", len(wav.PCM)).Dur("took", time.Since(start)).Msg("utterance played")
	return nil
}

// elevenSpeed maps a playback rate onto the range the API accepts.
func elevenSpeed(rate float64) float64 {
	if rate <= 0 {
		return 1.0
	}
	if rate < 0.7 {
		return 0.7
	}
	if rate > 1.2 {
		return 1.2
	}
	return rate
}

func scaleVolume(pcm []byte, vol float64) {
	if vol >= 1 || vol < 0 {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		v := uint16(int16(float64(s) * vol))
		pcm[i] = byte(v & 0xFF)
		pcm[i+1] = byte(v >> 8)
	}
}
