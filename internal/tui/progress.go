// Package tui renders a terminal progress view for a running macro.
package tui

import (
	"fmt"
	"strings"
	"time"

	"macroreplay/internal/playback"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("111"))
	playingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	metaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	barFull      = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	barEmpty     = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

const barWidth = 30

// Controls is the part of the scheduler the view drives.
type Controls interface {
	Pause()
	Resume()
	Stop()
	State() playback.State
}

type progressMsg playback.Progress

// closedMsg is delivered when the progress channel closes.
type closedMsg struct{}

// Model is the bubbletea model for a single run.
type Model struct {
	ctl      Controls
	updates  <-chan playback.Progress
	last     playback.Progress
	seen     bool
	summary  *playback.RunSummary
	quitting bool
	width    int
}

// New creates a view fed by updates. The channel should carry every
// notification of one run, ending with the Done notification.
func New(ctl Controls, updates <-chan playback.Progress) Model {
	return Model{ctl: ctl, updates: updates, width: 80}
}

// Summary returns the run summary once the run has finished.
func (m Model) Summary() *playback.RunSummary {
	return m.summary
}

func (m Model) Init() tea.Cmd {
	return m.wait()
}

func (m Model) wait() tea.Cmd {
	ch := m.updates
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return progressMsg(p)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case progressMsg:
		m.last = playback.Progress(msg)
		m.seen = true
		if m.last.Done {
			m.summary = m.last.Summary
			return m, tea.Quit
		}
		return m, m.wait()

	case closedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "p", " ", "space":
		switch m.ctl.State() {
		case playback.Playing:
			m.ctl.Pause()
		case playback.Paused:
			m.ctl.Resume()
		}
	case "s", "esc":
		m.ctl.Stop()
	case "q", "ctrl+c":
		// the run must not outlive the view
		m.ctl.Stop()
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	if !m.seen {
		return metaStyle.Render("waiting for playback...") + "\n"
	}
	p := m.last

	var b strings.Builder
	b.WriteString(titleStyle.Render(p.Macro))
	if p.Iteration > 1 {
		b.WriteString(metaStyle.Render(fmt.Sprintf("  loop %d", p.Iteration)))
	}
	b.WriteString("\n\n")

	if p.Done {
		b.WriteString(summaryLine(p.Summary))
		b.WriteString("\n")
		return b.String()
	}

	switch p.State {
	case playback.Paused:
		b.WriteString(pausedStyle.Render("paused"))
	default:
		b.WriteString(playingStyle.Render("playing"))
	}
	fmt.Fprintf(&b, "  event %d/%d  %s / %s\n", p.Index+1, p.Events,
		round(p.Nominal), round(p.Total))
	b.WriteString(Bar(p.Nominal, p.Total, barWidth))
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("[p] pause/resume  [s] stop  [q] quit"))
	b.WriteString("\n")
	return b.String()
}

func summaryLine(s *playback.RunSummary) string {
	if s == nil {
		return metaStyle.Render("finished")
	}
	line := fmt.Sprintf("%s after %d iteration(s): %d fired, %d skipped",
		s.Outcome(), s.Iterations, s.Fired, s.Skipped)
	if s.Err != nil {
		return errorStyle.Render(line + ": " + s.Err.Error())
	}
	return playingStyle.Render(line)
}

// Bar renders position within total as a fixed-width progress bar.
func Bar(pos, total time.Duration, width int) string {
	filled := 0
	switch {
	case total <= 0:
		filled = width
	case pos > 0:
		filled = int(int64(width) * int64(min(pos, total)) / int64(total))
	}
	return barFull.Render(strings.Repeat("█", filled)) +
		barEmpty.Render(strings.Repeat("░", width-filled))
}

func round(d time.Duration) time.Duration {
	return d.Round(10 * time.Millisecond)
}

// Run shows the view until the run finishes or the user quits, and
// returns the summary if the run finished while the view was open.
func Run(ctl Controls, updates <-chan playback.Progress) (*playback.RunSummary, error) {
	final, err := tea.NewProgram(New(ctl, updates)).Run()
	if err != nil {
		return nil, err
	}
	return final.(Model).Summary(), nil
}
