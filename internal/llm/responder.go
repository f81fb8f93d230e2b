// Package llm answers explain and chat requests about the current pose with
// a hosted language model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"yogaflow/coach/internal/flow"
	"yogaflow/coach/internal/intent"
)

var ErrNotConfigured = errors.New("llm: no API key configured")

// chatService is the slice of the SDK the responder uses.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// AzureEndpoint switches to Azure OpenAI; Model is then the deployment.
	AzureEndpoint   string
	AzureAPIVersion string
	MaxTokens       int
	MaxRetries      int
}

// Responder keeps answers short enough to be spoken between cues.
type Responder struct {
	chat  chatService
	model string
	max   int
	log   zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) (*Responder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	opts := []option.RequestOption{option.WithMaxRetries(cfg.MaxRetries)}
	if cfg.AzureEndpoint != "" {
		ver := cfg.AzureAPIVersion
		if ver == "" {
			ver = "2024-02-15-preview"
		}
		opts = append(opts, azure.WithEndpoint(cfg.AzureEndpoint, ver), azure.WithAPIKey(cfg.APIKey))
	} else {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	}
	cli := openai.NewClient(opts...)
	return newResponder(&cli.Chat.Completions, cfg, log), nil
}

func newResponder(chat chatService, cfg Config, log zerolog.Logger) *Responder {
	model := cfg.Model
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	max := cfg.MaxTokens
	if max <= 0 {
		max = 120
	}
	return &Responder{chat: chat, model: model, max: max, log: log.With().Str("component", "llm").Logger()}
}

const systemPrompt = `You are a calm yoga teacher guiding a practitioner through a flow by voice.
Answer in at most two short spoken sentences. No lists, no markdown.
Never give medical advice; suggest easing off if something hurts.`

func userPrompt(p flow.Pose, kind intent.Kind, query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current pose: %s.", p.Name)
	if len(p.Focus) > 0 {
		fmt.Fprintf(&b, " Focus: %s.", strings.Join(p.Focus, ", "))
	}
	if len(p.Cues) > 0 {
		fmt.Fprintf(&b, " Cues: %s", strings.Join(p.Cues, " "))
	}
	if p.Description != "" {
		fmt.Fprintf(&b, " About: %s", p.Description)
	}
	if kind == intent.Explain {
		fmt.Fprintf(&b, "\nThe practitioner asks: %q", query)
	} else {
		fmt.Fprintf(&b, "\nThe practitioner says: %q. Reply briefly and keep them practicing.", query)
	}
	return b.String()
}

// Answer implements the playback Responder.
func (r *Responder) Answer(ctx context.Context, p flow.Pose, kind intent.Kind, query string) (string, error) {
	start := time.Now()
	resp, err := r.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(p, kind, query)),
		},
		MaxTokens:   openai.Int(int64(r.max)),
		Temperature: openai.Float(0.4),
	})
	if err != nil {
		metricRequests.WithLabelValues("error").Inc()
		return "", fmt.Errorf("chat completion: %w", err)
	}
	metricLatencyMS.Observe(float64(time.Since(start).Milliseconds()))
	if len(resp.Choices) == 0 {
		metricRequests.WithLabelValues("empty").Inc()
		return "", fmt.Errorf("no choices returned")
	}
	metricRequests.WithLabelValues("ok").Inc()
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	r.log.Debug().Str("kind", string(kind)).Dur("took", time.Since(start)).Int("chars", len(text)).Msg("answered")
	return text, nil
}
