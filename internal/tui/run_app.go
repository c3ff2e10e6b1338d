package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/digestflow/internal/pipeline"
	"github.com/ShayCichocki/digestflow/pkg/models"
)

// maxLogLines bounds the activity log under the task list.
const maxLogLines = 8

// EventMsg carries one pipeline event into the TUI.
type EventMsg struct {
	Event pipeline.Event
}

// DoneMsg is sent when the run returns.
type DoneMsg struct {
	Summary *pipeline.Summary
	Err     error
}

type rowState string

const (
	rowPending rowState = "pending"
	rowRunning rowState = "running"
	rowRetry   rowState = "retrying"
	rowDone    rowState = "done"
	rowCached  rowState = "cached"
	rowFailed  rowState = "failed"
)

type taskRow struct {
	id       string
	kind     models.TaskKind
	state    rowState
	attempt  int
	duration time.Duration
	err      string
}

type keyMap struct {
	Quit key.Binding
}

// RunApp is the bubbletea model for `digestflow run --tui`.
type RunApp struct {
	rows    []*taskRow
	index   map[string]*taskRow
	logs    []string
	spinner spinner.Model
	keys    keyMap
	start   time.Time

	width    int
	done     bool
	quitting bool
	err      error
	summary  *pipeline.Summary

	titleStyle   lipgloss.Style
	pendingStyle lipgloss.Style
	runningStyle lipgloss.Style
	doneStyle    lipgloss.Style
	cachedStyle  lipgloss.Style
	failedStyle  lipgloss.Style
	retryStyle   lipgloss.Style
	dimStyle     lipgloss.Style
	barFull      lipgloss.Style
	barEmpty     lipgloss.Style
}

// NewRunApp creates the model for a run over tasks, listed in the given order.
func NewRunApp(tasks []*models.Task) *RunApp {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	a := &RunApp{
		index:   make(map[string]*taskRow, len(tasks)),
		spinner: s,
		keys: keyMap{
			Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		},
		start: time.Now(),

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray
		runningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green
		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")), // Dark green
		cachedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")), // Light blue
		failedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red
		retryStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")), // Orange
		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		barFull: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),
		barEmpty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
	for _, t := range tasks {
		row := &taskRow{id: t.ID, kind: t.Kind, state: rowPending}
		a.rows = append(a.rows, row)
		a.index[t.ID] = row
	}
	return a
}

// Init implements tea.Model.
func (a *RunApp) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *RunApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, a.keys.Quit) {
			a.quitting = true
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case EventMsg:
		a.apply(msg.Event)

	case DoneMsg:
		a.done = true
		a.err = msg.Err
		a.summary = msg.Summary
		return a, tea.Quit
	}
	return a, nil
}

func (a *RunApp) apply(ev pipeline.Event) {
	row := a.index[ev.TaskID]
	if row == nil {
		return
	}
	switch ev.Type {
	case pipeline.EventTaskStarted:
		row.state = rowRunning
		row.attempt = ev.Attempt
	case pipeline.EventTaskCached:
		row.state = rowCached
	case pipeline.EventTaskRetry:
		row.state = rowRetry
		row.attempt = ev.Attempt + 1
		a.log(fmt.Sprintf("%s attempt %d failed: %v", ev.TaskID, ev.Attempt, ev.Error))
	case pipeline.EventTaskDone:
		row.state = rowDone
		row.duration = ev.Duration
	case pipeline.EventTaskFailed:
		row.state = rowFailed
		row.duration = ev.Duration
		if ev.Error != nil {
			row.err = ev.Error.Error()
			a.log(fmt.Sprintf("%s failed: %s", ev.TaskID, row.err))
		}
	}
}

func (a *RunApp) log(line string) {
	a.logs = append(a.logs, time.Now().Format("15:04:05")+" "+line)
	if len(a.logs) > maxLogLines {
		a.logs = a.logs[len(a.logs)-maxLogLines:]
	}
}

// counts returns finished (done, cached or failed) and total rows.
func (a *RunApp) counts() (finished, total int) {
	for _, r := range a.rows {
		switch r.state {
		case rowDone, rowCached, rowFailed:
			finished++
		}
	}
	return finished, len(a.rows)
}

// View implements tea.Model.
func (a *RunApp) View() string {
	if a.quitting && !a.done {
		return "Run cancelled.\n"
	}

	var b strings.Builder
	b.WriteString(a.titleStyle.Render("digestflow run"))
	b.WriteString("\n\n")

	for _, r := range a.rows {
		b.WriteString(a.renderRow(r))
		b.WriteString("\n")
	}

	finished, total := a.counts()
	pct := 0.0
	if total > 0 {
		pct = float64(finished) / float64(total) * 100
	}
	b.WriteString("\n")
	b.WriteString(a.renderProgressBar(pct, 30))
	b.WriteString(fmt.Sprintf(" %d/%d tasks", finished, total))
	b.WriteString("\n")

	if len(a.logs) > 0 {
		b.WriteString("\n")
		for _, l := range a.logs {
			b.WriteString(a.dimStyle.Render("  " + l))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	switch {
	case a.done && a.err != nil:
		b.WriteString(a.failedStyle.Bold(true).Render(fmt.Sprintf("Run failed: %v", a.err)))
	case a.done && a.summary != nil:
		b.WriteString(a.doneStyle.Bold(true).Render(fmt.Sprintf("Run %s complete: %d executed, %d cached in %s",
			a.summary.RunID, a.summary.Executed, a.summary.Cached, a.summary.Duration.Round(time.Millisecond))))
	case a.done:
		b.WriteString(a.doneStyle.Bold(true).Render("Run complete"))
	default:
		b.WriteString(a.dimStyle.Render(fmt.Sprintf("%s elapsed  q to cancel", time.Since(a.start).Round(time.Second))))
	}
	b.WriteString("\n")
	return b.String()
}

func (a *RunApp) renderRow(r *taskRow) string {
	var icon, status string
	switch r.state {
	case rowRunning:
		icon, status = a.spinner.View(), a.runningStyle.Render("running")
	case rowRetry:
		icon, status = a.spinner.View(), a.retryStyle.Render(fmt.Sprintf("retry %d", r.attempt))
	case rowDone:
		icon, status = a.doneStyle.Render("✓"), a.doneStyle.Render(r.duration.Round(time.Millisecond).String())
	case rowCached:
		icon, status = a.cachedStyle.Render("≡"), a.cachedStyle.Render("cached")
	case rowFailed:
		icon, status = a.failedStyle.Render("✗"), a.failedStyle.Render("failed")
	default:
		icon, status = a.pendingStyle.Render("·"), a.pendingStyle.Render("pending")
	}

	name := lipgloss.NewStyle().Width(24).Render(r.id)
	return fmt.Sprintf(" %s %s %s", icon, name, status)
}

func (a *RunApp) renderProgressBar(pct float64, width int) string {
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	filled := int(pct / 100 * float64(width))
	return "  " + a.barFull.Render(strings.Repeat("█", filled)) +
		a.barEmpty.Render(strings.Repeat("░", width-filled))
}

// Err returns the run error delivered by DoneMsg.
func (a *RunApp) Err() error {
	return a.err
}

// Cancelled reports whether the user quit before the run finished.
func (a *RunApp) Cancelled() bool {
	return a.quitting && !a.done
}

// NewRunProgram creates a program for a run over tasks. The caller forwards
// events with Forward and sends DoneMsg when the run returns.
func NewRunProgram(tasks []*models.Task, opts ...tea.ProgramOption) (*tea.Program, *RunApp) {
	app := NewRunApp(tasks)
	return tea.NewProgram(app, opts...), app
}

// Forward sends events to p until stop is closed or a run_done event passes.
func Forward(p *tea.Program, events <-chan pipeline.Event, stop <-chan struct{}) {
	pipeline.Consume(events, stop, func(ev pipeline.Event) {
		p.Send(EventMsg{Event: ev})
	})
}
