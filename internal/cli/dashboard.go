package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rendercue/internal/model"
	"rendercue/internal/supervisor"
)

// dashboardController is the slice of the supervisor the dashboard drives.
type dashboardController interface {
	Snapshot() supervisor.Mirror
	Pause() error
	Resume() error
	Stop()
}

type dashboardKeys struct {
	Pause  key.Binding
	Resume key.Binding
	Stop   key.Binding
}

func newDashboardKeys() dashboardKeys {
	return dashboardKeys{
		Pause:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
		Resume: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "resume")),
		Stop:   key.NewBinding(key.WithKeys("s", "ctrl+c"), key.WithHelp("s/ctrl+c", "stop")),
	}
}

func (k dashboardKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Resume, k.Stop}
}

func (k dashboardKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

type dashboardTickMsg struct{}

type renderDoneMsg struct {
	summary supervisor.Summary
	err     error
}

var (
	dashTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dashMutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dashErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	dashOKStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	dashPausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	dashPanelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	dashRunningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
)

type dashboardModel struct {
	ctl    dashboardController
	tick   time.Duration
	wait   func() renderDoneMsg
	keys   dashboardKeys
	help   help.Model
	bar    progress.Model
	mirror supervisor.Mirror
	result *renderDoneMsg
	notice string
}

func newDashboardModel(ctl dashboardController, tick time.Duration, wait func() renderDoneMsg) dashboardModel {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 50
	return dashboardModel{
		ctl:    ctl,
		tick:   tick,
		wait:   wait,
		keys:   newDashboardKeys(),
		help:   help.New(),
		bar:    bar,
		mirror: ctl.Snapshot(),
	}
}

// renderOutcome holds the result of one render. done is closed once msg is
// set, so any number of readers may wait on it.
type renderOutcome struct {
	done chan struct{}
	msg  renderDoneMsg
}

func startRender(ctx context.Context, run func(context.Context) (supervisor.Summary, error)) *renderOutcome {
	out := &renderOutcome{done: make(chan struct{})}
	go func() {
		s, err := run(ctx)
		out.msg = renderDoneMsg{summary: s, err: err}
		close(out.done)
	}()
	return out
}

func (o *renderOutcome) wait() renderDoneMsg {
	<-o.done
	return o.msg
}

// runDashboard renders the queue behind a full screen view. The supervisor
// runs on its own goroutine; the view only ever reads snapshots.
func runDashboard(ctx context.Context, ctrl *supervisor.Controller, q model.Queue, tick time.Duration) (supervisor.Summary, error) {
	run := func(ctx context.Context) (supervisor.Summary, error) { return ctrl.Run(ctx, q) }
	return dashboard(ctx, ctrl, run, tick, tea.WithAltScreen())
}

func dashboard(ctx context.Context, ctl dashboardController, run func(context.Context) (supervisor.Summary, error), tick time.Duration, opts ...tea.ProgramOption) (supervisor.Summary, error) {
	out := startRender(ctx, run)

	opts = append(opts, tea.WithContext(ctx))
	p := tea.NewProgram(newDashboardModel(ctl, tick, out.wait), opts...)
	final, err := p.Run()
	if fm, ok := final.(dashboardModel); ok && err == nil && fm.result != nil {
		return fm.result.summary, fm.result.err
	}

	// the program ended before the render did
	ctl.Stop()
	res := out.wait()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) && !errors.Is(err, tea.ErrInterrupted) {
		return res.summary, fmt.Errorf("dashboard: %w", err)
	}
	return res.summary, res.err
}

func dashboardTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return dashboardTickMsg{} })
}

func waitForRender(wait func() renderDoneMsg) tea.Cmd {
	return func() tea.Msg { return wait() }
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(dashboardTick(m.tick), waitForRender(m.wait))
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = clampInt(msg.Width-24, 20, 80)
		m.help.Width = msg.Width
		return m, nil
	case dashboardTickMsg:
		m.mirror = m.ctl.Snapshot()
		return m, dashboardTick(m.tick)
	case renderDoneMsg:
		m.result = &msg
		m.mirror = m.ctl.Snapshot()
		return m, tea.Quit
	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m dashboardModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Pause):
		if m.mirror.Paused || m.mirror.PauseRequested {
			m.notice = "already paused"
			return m, nil
		}
		if err := m.ctl.Pause(); err != nil {
			m.notice = "pause: " + err.Error()
			return m, nil
		}
		m.mirror.PauseRequested = true
		m.notice = "pause requested; the current frame will finish first"
	case key.Matches(msg, m.keys.Resume):
		if !m.mirror.Paused && !m.mirror.PauseRequested {
			m.notice = "not paused"
			return m, nil
		}
		if err := m.ctl.Resume(); err != nil {
			m.notice = "resume: " + err.Error()
			return m, nil
		}
		m.mirror.PauseRequested = false
		m.notice = "resuming"
	case key.Matches(msg, m.keys.Stop):
		m.ctl.Stop()
		m.notice = "stopping: the worker is being killed"
	}
	return m, nil
}

func (m dashboardModel) View() string {
	mm := m.mirror
	var b strings.Builder

	header := dashTitleStyle.Render("rendercue")
	if mm.RunID != "" {
		header += dashMutedStyle.Render("  run " + mm.RunID)
	}
	b.WriteString(header + "\n\n")

	state := dashRunningStyle.Render(strings.ToUpper(string(mm.State)))
	switch {
	case mm.Paused:
		state = dashPausedStyle.Render("PAUSED")
	case mm.PauseRequested:
		state = dashPausedStyle.Render("PAUSING")
	}
	b.WriteString(state + "  " + mm.Message + "\n")
	b.WriteString(m.bar.ViewAs(mm.Progress) + "\n")
	b.WriteString(dashMutedStyle.Render(fmt.Sprintf("frames %d/%d | job %d/%d | etr %s | paused %s",
		mm.FinishedFrames, mm.TotalFrames, mm.JobIndex, mm.TotalJobs, mm.ETR,
		(time.Duration(mm.PausedDuration * float64(time.Second))).Round(time.Second))) + "\n")
	if mm.Error != "" {
		b.WriteString(dashErrorStyle.Render("error: "+mm.Error) + "\n")
	}

	rows := make([]string, 0, len(mm.Jobs))
	for i, job := range mm.Jobs {
		rows = append(rows, jobLine(i, job))
	}
	if len(rows) == 0 {
		rows = append(rows, dashMutedStyle.Render("(no jobs)"))
	}
	b.WriteString(dashPanelStyle.Render(strings.Join(rows, "\n")) + "\n")

	if mm.LastFrame != "" {
		b.WriteString(dashMutedStyle.Render("last frame: "+mm.LastFrame) + "\n")
	}
	if m.notice != "" {
		b.WriteString(m.notice + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func jobLine(i int, job supervisor.JobView) string {
	label := fmt.Sprintf("%2d. %-24s", i+1, truncate(job.Scene, 24))
	frames := fmt.Sprintf("%d/%d", job.CompletedFrames, job.TotalFrames)
	line := fmt.Sprintf("%s %s %9s", label, statusBadge(job.Status), frames)
	if job.ErrorMessage != "" {
		line += "  " + dashErrorStyle.Render(truncate(job.ErrorMessage, 60))
	}
	return line
}

func statusBadge(st model.JobStatus) string {
	text := fmt.Sprintf("%-9s", st)
	switch st {
	case model.StatusCompleted:
		return dashOKStyle.Render(text)
	case model.StatusFailed:
		return dashErrorStyle.Render(text)
	case model.StatusRendering:
		return dashRunningStyle.Render(text)
	case model.StatusCancelled:
		return dashPausedStyle.Render(text)
	default:
		return dashMutedStyle.Render(text)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
