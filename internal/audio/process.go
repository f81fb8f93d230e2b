// Package audio runs the external programs that own the speaker and the
// microphone (aplay/arecord, sox, ffplay...). PCM flows over stdin/stdout.
package audio

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var ErrNoCommand = errors.New("audio: command not configured")

// StopGrace is how long Stop waits after cancelling before killing.
var StopGrace = 3 * time.Second

// Process is a running audio helper.
type Process struct {
	Name   string
	Stdin  io.WriteCloser
	Stdout io.ReadCloser

	cmd    *exec.Cmd
	cancel context.CancelFunc
	log    zerolog.Logger

	done chan struct{}
	once sync.Once
	err  error
}

// Expand substitutes {key} placeholders in a command template.
func Expand(template string, vars map[string]string) string {
	for k, v := range vars {
		template = strings.ReplaceAll(template, "{"+k+"}", v)
	}
	return template
}

// Start launches cmdline (after placeholder expansion). The process dies
// with ctx. Stderr is forwarded to the logger line by line.
func Start(ctx context.Context, name, cmdline string, vars map[string]string, log zerolog.Logger) (*Process, error) {
	parts := strings.Fields(Expand(cmdline, vars))
	if len(parts) == 0 {
		return nil, ErrNoCommand
	}
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Env = envFromOS()

	p := &Process{
		Name:   name,
		cmd:    cmd,
		cancel: cancel,
		log:    log.With().Str("component", "audio").Str("proc", name).Logger(),
		done:   make(chan struct{}),
	}

	var err error
	if p.Stdin, err = cmd.StdinPipe(); err != nil {
		cancel()
		return nil, err
	}
	// An io.Pipe keeps Wait from closing stdout before the reader drains it.
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	p.Stdout = pr
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		_ = pw.Close()
		return nil, err
	}
	p.log.Debug().Int("pid", cmd.Process.Pid).Str("cmd", parts[0]).Msg("started")

	go p.stream(stderr)
	go func() {
		p.err = cmd.Wait()
		_ = pw.Close()
		close(p.done)
		p.log.Debug().Err(p.err).Msg("exited")
	}()
	return p, nil
}

// DiscardStdout drains stdout for processes whose output is unused, such
// as players, so they never block on a full pipe.
func (p *Process) DiscardStdout() {
	go func() { _, _ = io.Copy(io.Discard, p.Stdout) }()
}

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Wait blocks until exit and returns the exit error.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// Stop closes stdin, cancels the process and kills it if it has not exited
// within StopGrace.
func (p *Process) Stop() error {
	p.once.Do(func() {
		_ = p.Stdin.Close()
		_ = p.Stdout.Close()
		p.cancel()
	})
	select {
	case <-p.done:
		return nil
	case <-time.After(StopGrace):
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		<-p.done
		return nil
	}
}

func (p *Process) stream(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.log.Debug().Str("stream", "stderr").Msg(scanner.Text())
	}
}

func envFromOS() []string {
	base := os.Environ()
	out := make([]string, len(base))
	copy(out, base)
	return out
}
