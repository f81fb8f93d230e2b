package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"yogaflow/coach/internal/audio"
)

// AudioSource opens a stream of PCM16 mono audio at 16kHz.
type AudioSource func(ctx context.Context) (io.ReadCloser, error)

// RecorderSource reads microphone audio from an external recorder command,
// e.g. "arecord -q -f S16_LE -r 16000 -c 1 -t raw".
func RecorderSource(cmdline string, log zerolog.Logger) AudioSource {
	return func(ctx context.Context) (io.ReadCloser, error) {
		p, err := audio.Start(ctx, "recorder", cmdline, map[string]string{"rate": "16000"}, log)
		if err != nil {
			return nil, err
		}
		_ = p.Stdin.Close()
		return &recorderStream{p: p}, nil
	}
}

type recorderStream struct{ p *audio.Process }

func (r *recorderStream) Read(b []byte) (int, error) { return r.p.Stdout.Read(b) }
func (r *recorderStream) Close() error               { return r.p.Stop() }

type DeepgramConfig struct {
	APIKey        string
	Model         string
	Language      string
	BaseURL       string
	EndpointingMs int
	UtterEndMs    int
	// NoSpeechTimeout ends a session that has produced no transcript text.
	NoSpeechTimeout time.Duration
}

// Deepgram recognizes speech over Deepgram's live websocket API, one
// connection per recognition session.
type Deepgram struct {
	cfg    DeepgramConfig
	source AudioSource
	log    zerolog.Logger

	// circuit breaker shared across sessions
	mu      sync.Mutex
	fails   []time.Time
	circuit time.Time
}

func NewDeepgram(cfg DeepgramConfig, source AudioSource, log zerolog.Logger) *Deepgram {
	if cfg.NoSpeechTimeout <= 0 {
		cfg.NoSpeechTimeout = 8 * time.Second
	}
	return &Deepgram{cfg: cfg, source: source, log: log.With().Str("component", "deepgram").Logger()}
}

func (d *Deepgram) url() string {
	q := url.Values{}
	q.Set("model", orDefault(d.cfg.Model, "nova-2"))
	q.Set("language", orDefault(d.cfg.Language, "en-US"))
	q.Set("smart_format", "true")
	q.Set("endpointing", fmt.Sprintf("%d", nzd(d.cfg.EndpointingMs, 1000)))
	q.Set("interim_results", "true")
	q.Set("utterance_end_ms", fmt.Sprintf("%d", nzd(d.cfg.UtterEndMs, 1500)))
	q.Set("vad_events", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", "16000")
	q.Set("channels", "1")
	base := d.cfg.BaseURL
	if base == "" {
		base = "wss://api.deepgram.com/v1/listen"
	}
	return base + "?" + q.Encode()
}

func (d *Deepgram) Recognize(ctx context.Context, emit func(Event)) error {
	if d.cfg.APIKey == "" {
		return fmt.Errorf("missing DEEPGRAM_API_KEY: %w", ErrUnsupported)
	}
	if d.circuitOpen() {
		return fmt.Errorf("circuit open: %w", ErrNetwork)
	}

	mic, err := d.source(ctx)
	if err != nil {
		return fmt.Errorf("open microphone: %v: %w", err, ErrNotAllowed)
	}
	defer mic.Close()

	hdr := make(http.Header)
	hdr.Set("Authorization", "Token "+d.cfg.APIKey)
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	start := time.Now()
	ws, resp, err := websocket.Dial(dialCtx, d.url(), &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("deepgram rejected credentials (%d): %w", resp.StatusCode, ErrNotAllowed)
		}
		d.addFailure()
		return fmt.Errorf("deepgram connect: %v: %w", err, ErrNetwork)
	}
	d.resetFailures()
	metricConnectMS.Observe(float64(time.Since(start).Milliseconds()))
	d.log.Debug().Dur("took", time.Since(start)).Msg("connected")
	defer ws.Close(websocket.StatusNormalClosure, "bye")

	go d.pump(ctx, ws, mic)

	err = d.read(ctx, ws, emit)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// pump streams microphone audio in 20ms frames. When the microphone ends
// it asks the provider to flush and close.
func (d *Deepgram) pump(ctx context.Context, ws *websocket.Conn, mic io.Reader) {
	buf := make([]byte, 16000/50*2)
	for {
		n, err := io.ReadFull(mic, buf)
		if n > 0 {
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			werr := ws.Write(wctx, websocket.MessageBinary, buf[:n])
			cancel()
			if werr != nil {
				return
			}
			metricAudioBytes.Add(float64(n))
		}
		if err != nil {
			if ctx.Err() == nil {
				wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
				_ = ws.Write(wctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
				cancel()
			}
			return
		}
	}
}

func (d *Deepgram) read(ctx context.Context, ws *websocket.Conn, emit func(Event)) error {
	var lastText string
	heard := make(chan struct{})
	var heardOnce sync.Once

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var silent bool
	var silentMu sync.Mutex
	timer := time.AfterFunc(d.cfg.NoSpeechTimeout, func() {
		select {
		case <-heard:
		default:
			silentMu.Lock()
			silent = true
			silentMu.Unlock()
			cancel()
		}
	})
	defer timer.Stop()

	for {
		_, data, err := ws.Read(rctx)
		if err != nil {
			silentMu.Lock()
			s := silent
			silentMu.Unlock()
			if s {
				return ErrNoSpeech
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				if lastText != "" {
					emit(Event{Type: EventFinal, Text: lastText})
					metricFinalEmitted.WithLabelValues("interim_fallback").Inc()
					return nil
				}
				return ErrNoSpeech
			}
			return fmt.Errorf("deepgram read: %v: %w", err, ErrNetwork)
		}
		if len(data) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			d.log.Debug().Err(err).Msg("unparseable provider frame")
			continue
		}

		typ := toString(m["type"])
		switch {
		case strings.EqualFold(typ, "Error") || m["error"] != nil:
			msg := toString(m["error"])
			if msg == "" {
				msg = toString(m["message"])
			}
			if msg == "" {
				msg = "provider_error"
			}
			return fmt.Errorf("deepgram: %s: %w", msg, ErrNetwork)

		case strings.EqualFold(typ, "Metadata"), strings.EqualFold(typ, "SpeechStarted"):
			continue

		case strings.EqualFold(typ, "UtteranceEnd"):
			// Speech ended without an is_final result.
			if lastText == "" {
				metricEmptyFinalSkipped.Inc()
				continue
			}
			emit(Event{Type: EventFinal, Text: lastText})
			metricFinalEmitted.WithLabelValues("interim_fallback").Inc()
			return nil

		case strings.EqualFold(typ, "Results") || m["channel"] != nil:
			text := transcriptOf(m)
			if text != "" {
				lastText = text
				heardOnce.Do(func() { close(heard) })
			}
			if toBool(m["is_final"]) || toBool(m["speech_final"]) {
				if text == "" {
					metricEmptyFinalSkipped.Inc()
					continue
				}
				emit(Event{Type: EventFinal, Text: text})
				metricFinalEmitted.WithLabelValues("provider").Inc()
				return nil
			}
			if text != "" {
				emit(Event{Type: EventInterim, Text: text})
			}
		}
	}
}

// transcriptOf reads channel.alternatives[0].transcript.
func transcriptOf(m map[string]any) string {
	channel, _ := m["channel"].(map[string]any)
	if channel == nil {
		return ""
	}
	alts, _ := channel["alternatives"].([]any)
	if len(alts) == 0 {
		return ""
	}
	a0, _ := alts[0].(map[string]any)
	return strings.TrimSpace(toString(a0["transcript"]))
}

func (d *Deepgram) circuitOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Now().Before(d.circuit)
}

func (d *Deepgram) addFailure() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fails = append(d.fails, time.Now())
	cutoff := time.Now().Add(-60 * time.Second)
	j := 0
	for _, t := range d.fails {
		if t.After(cutoff) {
			d.fails[j] = t
			j++
		}
	}
	d.fails = d.fails[:j]
	if len(d.fails) >= 3 {
		d.circuit = time.Now().Add(30 * time.Second)
		metricCircuitOpens.Inc()
	}
}

func (d *Deepgram) resetFailures() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fails = nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func nzd(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	default:
		return false
	}
}
