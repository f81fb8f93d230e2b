// Package tui is the terminal front end for a practice session.
package tui

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI runs the practice screen for one session.
type TUI struct {
	mu      sync.Mutex
	program *tea.Program
}

func New() *TUI { return &TUI{} }

// Notify asks the screen to redraw now instead of on the next refresh tick.
// It is safe to call before Run and from any goroutine.
func (t *TUI) Notify() {
	t.mu.Lock()
	p := t.program
	t.mu.Unlock()
	if p != nil {
		go p.Send(RefreshMsg{})
	}
}

// Run starts the UI and blocks until the user quits or ctx is cancelled.
func (t *TUI) Run(ctx context.Context, ctl Controller) error {
	p := tea.NewProgram(NewModel(ctl), tea.WithAltScreen(), tea.WithContext(ctx))
	t.mu.Lock()
	t.program = p
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.program = nil
		t.mu.Unlock()
	}()

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
