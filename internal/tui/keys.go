package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the practice shortcuts. Space and the arrows only act while
// the command box is empty so they never eat typed text.
type KeyMap struct {
	Quit       key.Binding
	Send       key.Binding
	TogglePlay key.Binding
	Prev       key.Binding
	Next       key.Binding
	Talk       key.Binding
	Mute       key.Binding
	HoldCues   key.Binding
	Slower     key.Binding
	Faster     key.Binding
	Help       key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:       key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
		Send:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		TogglePlay: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Prev:       key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "previous")),
		Next:       key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "next")),
		Talk:       key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "talk")),
		Mute:       key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "mute")),
		HoldCues:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "hold cue")),
		Slower:     key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "slower")),
		Faster:     key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "faster")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.TogglePlay, k.Prev, k.Next, k.Talk, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.TogglePlay, k.Prev, k.Next, k.Slower, k.Faster},
		{k.Talk, k.Mute, k.HoldCues, k.Send, k.Help, k.Quit},
	}
}
