package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSONAndComponent(t *testing.T) {
	var buf bytes.Buffer
	Init("debug", false, &buf)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	l := For("playback")
	l.Debug().Int("pose", 2).Msg("state")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "playback", line["component"])
	assert.Equal(t, "state", line["message"])
	assert.Equal(t, "debug", line["level"])
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Init("chatty", false, &buf)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	l := For("x")
	l.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
}
