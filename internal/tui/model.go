// Package tui renders live pipeline progress for `taxaflow run --watch`.
// A compact Bubbletea model shows one line per stage, driven by events
// bridged from the run's event bus.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Bus events arrive as these messages, forwarded by App.
type (
	stageStartedMsg struct {
		stage string
	}
	stageCompletedMsg struct {
		stage    string
		success  bool
		duration time.Duration
		errMsg   string
	}
	artifactWrittenMsg struct {
		name string
	}
	runCompletedMsg struct {
		success  bool
		duration time.Duration
		errMsg   string
	}
)

// elapsedTickMsg drives the elapsed timer at the configured refresh rate.
type elapsedTickMsg time.Time

type stageStatus int

const (
	stagePending stageStatus = iota
	stageRunning
	stageDone
	stageFailed
)

type stageLine struct {
	name     string
	status   stageStatus
	duration time.Duration
	errMsg   string
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	runningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	durationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

// Model is the Bubbletea model for pipeline progress.
type Model struct {
	runID   string
	stages  []stageLine
	spinner spinner.Model
	// artifacts is keyed by file name: the same artifact may be reported
	// twice, once by the directory watcher and once from the manifest
	// record after the stage completes.
	artifacts map[string]struct{}
	refresh   time.Duration
	started   time.Time
	finished  bool
	success   bool
	errMsg    string
	elapsed   time.Duration
	width     int
}

// NewModel creates a progress model for the given run and stage list.
// refresh is the elapsed-timer cadence; non-positive values fall back to
// 250ms.
func NewModel(runID string, stageNames []string, refresh time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = runningStyle

	stages := make([]stageLine, len(stageNames))
	for i, name := range stageNames {
		stages[i] = stageLine{name: name}
	}

	if refresh <= 0 {
		refresh = 250 * time.Millisecond
	}

	return Model{
		runID:     runID,
		stages:    stages,
		spinner:   s,
		artifacts: make(map[string]struct{}),
		refresh:   refresh,
		started:   time.Now(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tickElapsed())
}

func (m Model) tickElapsed() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return elapsedTickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case elapsedTickMsg:
		if m.finished {
			return m, nil
		}
		m.elapsed = time.Since(m.started)
		return m, m.tickElapsed()

	case stageStartedMsg:
		m.setStatus(msg.stage, stageRunning, 0, "")

	case stageCompletedMsg:
		if msg.success {
			m.setStatus(msg.stage, stageDone, msg.duration, "")
		} else {
			m.setStatus(msg.stage, stageFailed, msg.duration, msg.errMsg)
		}

	case artifactWrittenMsg:
		m.artifacts[msg.name] = struct{}{}

	case runCompletedMsg:
		m.finished = true
		m.success = msg.success
		m.errMsg = msg.errMsg
		m.elapsed = msg.duration
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) setStatus(stage string, status stageStatus, d time.Duration, errMsg string) {
	for i := range m.stages {
		if m.stages[i].name == stage {
			m.stages[i].status = status
			m.stages[i].duration = d
			m.stages[i].errMsg = errMsg
			return
		}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("taxaflow run %s", m.runID)))
	b.WriteString("\n\n")

	for _, s := range m.stages {
		switch s.status {
		case stageRunning:
			b.WriteString(fmt.Sprintf("  %s %s\n", m.spinner.View(), runningStyle.Render(s.name)))
		case stageDone:
			b.WriteString(fmt.Sprintf("  %s %s %s\n",
				doneStyle.Render("✓"), s.name,
				durationStyle.Render(formatDuration(s.duration))))
		case stageFailed:
			b.WriteString(fmt.Sprintf("  %s %s\n", failedStyle.Render("✗"), s.name))
		default:
			b.WriteString(fmt.Sprintf("  %s %s\n", pendingStyle.Render("·"), pendingStyle.Render(s.name)))
		}
	}

	b.WriteString("\n")
	if m.finished {
		if m.success {
			b.WriteString(doneStyle.Render(fmt.Sprintf(
				"completed in %s, %d artifacts", formatDuration(m.elapsed), len(m.artifacts))))
		} else {
			b.WriteString(failedStyle.Render("run failed"))
			if m.errMsg != "" {
				b.WriteString("\n")
				b.WriteString(errorStyle.Render(truncate(m.errMsg, 2000)))
			}
		}
		b.WriteString("\n")
	} else {
		b.WriteString(helpStyle.Render(fmt.Sprintf(
			"%s elapsed. q to detach, the run continues", formatDuration(m.elapsed))))
		b.WriteString("\n")
	}

	return b.String()
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
