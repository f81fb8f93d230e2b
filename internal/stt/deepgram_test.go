package stt

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func silence(n int) AudioSource {
	return func(ctx context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(make([]byte, n))), nil
	}
}

// fakeDeepgram accepts one socket, waits for the first audio frame and then
// replies with frames.
func fakeDeepgram(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if typ, _, err := c.Read(ctx); err != nil || typ != websocket.MessageBinary {
			return
		}
		for _, f := range frames {
			if err := c.Write(ctx, websocket.MessageText, []byte(f)); err != nil {
				return
			}
		}
		// Hold until the client hangs up.
		for {
			if _, _, err := c.Read(ctx); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string { return "ws" + strings.TrimPrefix(srv.URL, "http") }

func collect(t *testing.T, d *Deepgram) ([]Event, error) {
	t.Helper()
	var got []Event
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := d.Recognize(ctx, func(e Event) { got = append(got, e) })
	return got, err
}

func TestDeepgramInterimThenFinal(t *testing.T) {
	srv := fakeDeepgram(t,
		`{"type":"Metadata","request_id":"x"}`,
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"slow"}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":" slow down "}]}}`,
	)
	defer srv.Close()

	d := NewDeepgram(DeepgramConfig{APIKey: "k", BaseURL: wsURL(srv)}, silence(640), zerolog.Nop())
	got, err := collect(t, d)
	require.NoError(t, err)
	assert.Equal(t, []Event{{Type: EventInterim, Text: "slow"}, {Type: EventFinal, Text: "slow down"}}, got)
}

func TestDeepgramUtteranceEndFallsBackToInterim(t *testing.T) {
	srv := fakeDeepgram(t,
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"next pose"}]}}`,
		`{"type":"UtteranceEnd"}`,
	)
	defer srv.Close()

	d := NewDeepgram(DeepgramConfig{APIKey: "k", BaseURL: wsURL(srv)}, silence(640), zerolog.Nop())
	got, err := collect(t, d)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Event{Type: EventFinal, Text: "next pose"}, got[1])
}

func TestDeepgramProviderError(t *testing.T) {
	srv := fakeDeepgram(t, `{"type":"Error","message":"bad audio"}`)
	defer srv.Close()

	d := NewDeepgram(DeepgramConfig{APIKey: "k", BaseURL: wsURL(srv)}, silence(640), zerolog.Nop())
	_, err := collect(t, d)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, CodeNetwork, CodeOf(err))
}

func TestDeepgramNoSpeechTimeout(t *testing.T) {
	srv := fakeDeepgram(t)
	defer srv.Close()

	d := NewDeepgram(DeepgramConfig{APIKey: "k", BaseURL: wsURL(srv), NoSpeechTimeout: 100 * time.Millisecond}, silence(640), zerolog.Nop())
	_, err := collect(t, d)
	assert.ErrorIs(t, err, ErrNoSpeech)
}

func TestDeepgramRejectedKey(t *testing.T) {
	srv := fakeDeepgram(t)
	defer srv.Close()

	d := NewDeepgram(DeepgramConfig{APIKey: "wrong", BaseURL: wsURL(srv)}, silence(640), zerolog.Nop())
	_, err := collect(t, d)
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestDeepgramMissingKey(t *testing.T) {
	d := NewDeepgram(DeepgramConfig{}, silence(0), zerolog.Nop())
	_, err := collect(t, d)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDeepgramCircuitOpensAfterRepeatedFailures(t *testing.T) {
	d := NewDeepgram(DeepgramConfig{APIKey: "k", BaseURL: "ws://127.0.0.1:1"}, silence(640), zerolog.Nop())
	for i := 0; i < 3; i++ {
		_, err := collect(t, d)
		require.ErrorIs(t, err, ErrNetwork)
	}
	assert.True(t, d.circuitOpen())
	_, err := collect(t, d)
	assert.Contains(t, err.Error(), "circuit open")
}

func TestDeepgramURL(t *testing.T) {
	d := NewDeepgram(DeepgramConfig{Model: "nova-3", EndpointingMs: 300}, nil, zerolog.Nop())
	u := d.url()
	assert.True(t, strings.HasPrefix(u, "wss://api.deepgram.com/v1/listen?"))
	assert.Contains(t, u, "model=nova-3")
	assert.Contains(t, u, "endpointing=300")
	assert.Contains(t, u, "sample_rate=16000")
}
