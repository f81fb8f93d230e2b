package audio

import (
	"context"
	"io"
	"os/exec"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	got := Expand("aplay -r {rate} -c {channels}", map[string]string{"rate": "48000", "channels": "1"})
	assert.Equal(t, "aplay -r 48000 -c 1", got)
}

func TestStartEmptyCommand(t *testing.T) {
	_, err := Start(context.Background(), "player", "  ", nil, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoCommand)
}

func TestStartPipesThroughCat(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	p, err := Start(context.Background(), "echo", "cat", nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = p.Stdin.Write([]byte("pcm"))
	require.NoError(t, err)
	require.NoError(t, p.Stdin.Close())

	out, err := io.ReadAll(p.Stdout)
	require.NoError(t, err)
	assert.Equal(t, "pcm", string(out))
	assert.NoError(t, p.Wait())
}

func TestStopEndsLongRunningProcess(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	p, err := Start(context.Background(), "sleeper", "sleep 30", nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, p.Stop())
	select {
	case <-p.Done():
	default:
		t.Fatal("process still running after Stop")
	}
}
