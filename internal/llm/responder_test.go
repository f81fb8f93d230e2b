package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yogaflow/coach/internal/flow"
	"yogaflow/coach/internal/intent"
)

type fakeChat struct {
	got  openai.ChatCompletionNewParams
	resp *openai.ChatCompletion
	err  error
}

func (f *fakeChat) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.got = body
	return f.resp, f.err
}

func reply(s string) *openai.ChatCompletion {
	return &openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: s}}}}
}

var fold = flow.Pose{ID: "rag", Name: "Ragdoll Fold", Focus: []string{"hamstrings"}, Cues: []string{"Soften knees."}}

func TestAnswerUsesModelReply(t *testing.T) {
	chat := &fakeChat{resp: reply("  Your hamstrings lengthen as the pelvis tips.  ")}
	r := newResponder(chat, Config{}, zerolog.Nop())

	got, err := r.Answer(context.Background(), fold, intent.Explain, "why hamstrings")
	require.NoError(t, err)
	assert.Equal(t, "Your hamstrings lengthen as the pelvis tips.", got)
	assert.Equal(t, openai.ChatModel("gpt-4o-mini"), chat.got.Model)
	assert.Len(t, chat.got.Messages, 2)
}

func TestAnswerErrors(t *testing.T) {
	r := newResponder(&fakeChat{err: errors.New("429")}, Config{Model: "gpt-4o"}, zerolog.Nop())
	_, err := r.Answer(context.Background(), fold, intent.Chat, "hi")
	assert.Error(t, err)

	r = newResponder(&fakeChat{resp: &openai.ChatCompletion{}}, Config{}, zerolog.Nop())
	_, err = r.Answer(context.Background(), fold, intent.Chat, "hi")
	assert.Error(t, err)
}

func TestUserPrompt(t *testing.T) {
	p := userPrompt(fold, intent.Explain, "why hamstrings")
	assert.Contains(t, p, "Ragdoll Fold")
	assert.Contains(t, p, "Focus: hamstrings")
	assert.Contains(t, p, `asks: "why hamstrings"`)
	assert.Contains(t, userPrompt(fold, intent.Chat, "tired"), `says: "tired"`)
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNotConfigured)

	r, err := New(Config{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1"}, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, r)
}
