package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"yogaflow/coach/internal/coach"
	"yogaflow/coach/internal/intent"
	"yogaflow/coach/internal/playback"
)

// Controller is the session surface the UI drives.
type Controller interface {
	Submit(raw string) (intent.Intent, bool)
	PushToTalk() bool
	ReleaseTalk()
	HoldCues(hold bool)
	ToggleMute() bool
	View() coach.View
}

// RefreshMsg asks the model to re-read the session view.
type RefreshMsg struct{}

type tickMsg time.Time

const refreshEvery = 250 * time.Millisecond

type Model struct {
	ctl Controller

	width int
	view  coach.View

	input    textinput.Model
	poseBar  progress.Model
	flowBar  progress.Model
	help     help.Model
	keys     KeyMap
	styles   Styles
	showHelp bool
	quitting bool
}

func NewModel(ctl Controller) Model {
	ti := textinput.New()
	ti.Placeholder = `Say or type: "next", "slow down", "how long left?"`
	ti.Prompt = "› "
	ti.CharLimit = 256
	ti.Width = 60
	ti.Focus()

	return Model{
		ctl:     ctl,
		view:    ctl.View(),
		input:   ti,
		poseBar: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		flowBar: progress.New(progress.WithSolidFill("#A78BFA"), progress.WithoutPercentage()),
		help:    help.New(),
		keys:    DefaultKeyMap(),
		styles:  DefaultStyles(),
		width:   80,
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tick())
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 8
		if w > 72 {
			w = 72
		}
		if w < 20 {
			w = 20
		}
		m.poseBar.Width = w
		m.flowBar.Width = w
		m.input.Width = w
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.view = m.ctl.View()
		return m, tick()

	case RefreshMsg:
		m.view = m.ctl.View()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	empty := strings.TrimSpace(m.input.Value()) == ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		text := m.input.Value()
		m.input.SetValue("")
		m.ctl.Submit(text)
		m.view = m.ctl.View()
		return m, nil

	case key.Matches(msg, m.keys.Talk):
		if m.view.Listening {
			m.ctl.ReleaseTalk()
		} else {
			m.ctl.PushToTalk()
		}
		m.view = m.ctl.View()
		return m, nil

	case key.Matches(msg, m.keys.Mute):
		m.ctl.ToggleMute()
		m.view = m.ctl.View()
		return m, nil

	case key.Matches(msg, m.keys.HoldCues):
		m.ctl.HoldCues(!m.view.HoldingCues)
		m.view = m.ctl.View()
		return m, nil
	}

	if empty {
		cmd := ""
		switch {
		case key.Matches(msg, m.keys.TogglePlay):
			cmd = "pause"
			if m.view.Paused {
				cmd = "resume"
			}
		case key.Matches(msg, m.keys.Prev):
			cmd = "previous"
		case key.Matches(msg, m.keys.Next):
			cmd = "next"
		case key.Matches(msg, m.keys.Slower):
			cmd = "slower"
		case key.Matches(msg, m.keys.Faster):
			cmd = "faster"
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			m.help.ShowAll = m.showHelp
			return m, nil
		}
		if cmd != "" {
			m.ctl.Submit(cmd)
			m.view = m.ctl.View()
			return m, nil
		}
	}

	var c tea.Cmd
	m.input, c = m.input.Update(msg)
	return m, c
}

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	v := m.view
	s := m.styles
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s\n\n", s.Title.Render(v.Title), s.Muted.Render(fmt.Sprintf("pose %d of %d", v.PoseIndex+1, v.PoseCount)))

	if v.Complete {
		b.WriteString(s.Complete.Render("Practice complete. Nice work.") + "\n")
		b.WriteString(s.Muted.Render("Say \"resume\" to start again.") + "\n\n")
	} else {
		fmt.Fprintf(&b, "%s   %s\n", s.Pose.Render(v.Pose.Name), s.Clock.Render(v.Remaining))
		if len(v.Pose.Focus) > 0 {
			b.WriteString(s.Muted.Render("focus: "+strings.Join(v.Pose.Focus, ", ")) + "\n")
		}
		b.WriteString(m.poseBar.ViewAs(v.PoseProgress/100) + "\n\n")
		if v.Cue != "" {
			b.WriteString(s.Cue.Render("“"+v.Cue+"”") + "\n\n")
		}
	}

	if v.NextName != "" {
		b.WriteString(s.Muted.Render(fmt.Sprintf("next up: %s (%s)", v.NextName, playback.FormatClock(v.NextDuration))) + "\n")
	}
	b.WriteString(m.flowBar.ViewAs(v.FlowProgress/100) + "\n\n")

	if v.Narration != "" {
		b.WriteString(s.Muted.Render("coach: "+v.Narration) + "\n")
	}
	b.WriteString(s.Status.Render(m.statusLine()) + "\n")
	if v.Listening && v.Interim != "" {
		b.WriteString(s.Muted.Render("hearing: "+v.Interim) + "\n")
	}
	if v.VoiceError != "" {
		b.WriteString(s.Error.Render("voice: "+string(v.VoiceError)) + "\n")
	}
	if v.LastInput != "" {
		b.WriteString(s.Muted.Render(fmt.Sprintf("you: %s → %s", v.LastInput, v.LastIntent)) + "\n")
	}

	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(m.help.View(m.keys))

	return s.Box.Width(min(m.width-2, 80)).Render(b.String())
}

func (m Model) statusLine() string {
	v := m.view
	var parts []string
	switch {
	case v.Closed:
		parts = append(parts, "closed")
	case v.Complete:
		parts = append(parts, "complete")
	case v.Paused:
		parts = append(parts, "⏸ paused")
	default:
		parts = append(parts, "▶ playing")
	}
	parts = append(parts, fmt.Sprintf("%.2fx", v.Rate))
	if v.CanListen {
		if v.Listening {
			parts = append(parts, "● listening")
		} else {
			parts = append(parts, "mic ready")
		}
	}
	switch {
	case !v.CanSpeak:
		parts = append(parts, "text only")
	case v.Volume == 0:
		parts = append(parts, "muted")
	case v.Speaking:
		parts = append(parts, "speaking")
	}
	if v.HoldingCues {
		parts = append(parts, "cue held")
	}
	return strings.Join(parts, " · ")
}
