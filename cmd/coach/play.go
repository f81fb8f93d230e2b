package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"yogaflow/coach/internal/capability"
	"yogaflow/coach/internal/coach"
	"yogaflow/coach/internal/config"
	"yogaflow/coach/internal/events"
	"yogaflow/coach/internal/flow"
	"yogaflow/coach/internal/llm"
	"yogaflow/coach/internal/logging"
	"yogaflow/coach/internal/playback"
	"yogaflow/coach/internal/stt"
	"yogaflow/coach/internal/tts"
	"yogaflow/coach/internal/tui"
)

func runPlay(parent context.Context, cfg config.Config, logPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var logOut io.Writer = io.Discard
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	// The practice screen owns the terminal, so logs never go to stderr here.
	logger := logging.Init(cfg.Log.Level, false, logOut)

	var fl *flow.Flow
	if cfg.Playback.FlowFile != "" {
		loaded, err := flow.Load(cfg.Playback.FlowFile)
		if err != nil {
			return fmt.Errorf("load flow: %w", err)
		}
		fl = &loaded
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	report := capability.CheckAll(pctx, cfg)
	cancel()
	logger.Info().Bool("voice_out", report.Synthesis).Bool("voice_in", report.Recognition).
		Bool("responder", report.Responder).Msg("capabilities")

	sink, closeSink, err := openSink(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	ui := tui.New()
	opts := coach.Options{
		Flow: fl,
		Playback: playback.Options{
			RateMin:          cfg.Playback.RateMin,
			RateMax:          cfg.Playback.RateMax,
			RateStep:         cfg.Playback.RateStep,
			MinInterval:      cfg.Playback.MinInterval,
			Autoplay:         cfg.Playback.Autoplay,
			ResponderTimeout: cfg.LLM.Timeout,
		},
		CueInterval: cfg.Playback.CueInterval,
		Speaker: tts.Options{
			VoiceName: cfg.Voice.Name,
			Rate:      cfg.Voice.Rate,
			Pitch:     cfg.Voice.Pitch,
			Volume:    cfg.Voice.Volume,
		},
		Sink:     sink,
		OnChange: ui.Notify,
		Logger:   logger,
	}
	if report.Synthesis {
		opts.Synthesizer = synthesizer(cfg, logger)
	}
	if report.Recognition {
		opts.Recognizer = stt.NewDeepgram(stt.DeepgramConfig{
			APIKey:          cfg.Deepgram.APIKey,
			Model:           cfg.Deepgram.Model,
			Language:        cfg.Deepgram.Language,
			BaseURL:         cfg.Deepgram.BaseURL,
			EndpointingMs:   cfg.Deepgram.EndpointingMs,
			UtterEndMs:      cfg.Deepgram.UtterEndMs,
			NoSpeechTimeout: cfg.Deepgram.NoSpeech,
		}, stt.RecorderSource(cfg.Deepgram.RecorderCmd, logger), logger)
	}
	if r, err := llm.New(llm.Config{
		APIKey:          cfg.LLM.APIKey,
		Model:           cfg.LLM.Model,
		BaseURL:         cfg.LLM.BaseURL,
		AzureEndpoint:   cfg.LLM.AzureEndpoint,
		AzureAPIVersion: cfg.LLM.AzureAPIVersion,
	}, logger); err == nil {
		opts.Responder = r
	} else if !errors.Is(err, llm.ErrNotConfigured) {
		logger.Warn().Err(err).Msg("responder disabled")
	}

	session := coach.New(opts)
	defer session.Close()

	return ui.Run(ctx, session)
}

func synthesizer(cfg config.Config, logger zerolog.Logger) tts.Synthesizer {
	switch cfg.Voice.Provider {
	case "elevenlabs":
		return &tts.ElevenLabs{
			APIKey:  cfg.Eleven.APIKey,
			VoiceID: cfg.Eleven.VoiceID,
			ModelID: cfg.Eleven.ModelID,
			BaseURL: cfg.Eleven.BaseURL,
			Player:  tts.ProcessPlayer(cfg.Voice.PlayerCmd, logger),
			Log:     logger,
		}
	case "console":
		// Narration is shown on the practice screen.
		return &tts.Console{}
	}
	return nil
}

func openSink(cfg config.Config, logger zerolog.Logger) (events.Sink, func(), error) {
	if cfg.Events.Path == "" {
		return events.LogSink{Log: logger}, func() {}, nil
	}
	f, err := os.OpenFile(cfg.Events.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open events file: %w", err)
	}
	return &events.JSONSink{W: f}, func() { _ = f.Close() }, nil
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok\n")) })
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info().Str("addr", addr).Msg("metrics listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn().Err(err).Msg("metrics server stopped")
	}
}
