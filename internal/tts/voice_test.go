package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectVoice(t *testing.T) {
	voices := []Voice{
		{ID: "1", Name: "Alex", Lang: "de-DE", Default: true},
		{ID: "2", Name: "Daniel", Lang: "en-GB"},
		{ID: "3", Name: "Microsoft Jenny Online", Lang: "en-US"},
		{ID: "4", Name: "Samantha", Lang: "en-US"},
	}

	v, ok := SelectVoice(voices, "daniel", DefaultPreferred)
	assert.True(t, ok)
	assert.Equal(t, "2", v.ID, "exact name, case-insensitive")

	v, _ = SelectVoice(voices, "", DefaultPreferred)
	assert.Equal(t, "4", v.ID, "preferred list order wins over slice order")

	v, _ = SelectVoice(voices, "Nobody", nil)
	assert.Equal(t, "2", v.ID, "first English voice")

	v, _ = SelectVoice(voices[:1], "", DefaultPreferred)
	assert.Equal(t, "1", v.ID, "platform default")

	_, ok = SelectVoice(nil, "x", DefaultPreferred)
	assert.False(t, ok)
}
