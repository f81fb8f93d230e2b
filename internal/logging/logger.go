// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	mu     sync.Mutex
	global = zerolog.Nop()
)

// Init sets the global level and writer. pretty selects the console writer,
// otherwise JSON lines are written. A nil out means stderr, which keeps
// stdout free for the terminal UI.
func Init(level string, pretty bool, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	l := zerolog.New(out).With().Timestamp().Logger()

	mu.Lock()
	global = l
	mu.Unlock()
	log.Logger = l
	return l
}

// For returns a child of the global logger tagged with component.
func For(component string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return global.With().Str("component", component).Logger()
}
