// Package monitor is the terminal view behind `tome watch`. It polls the
// progress store the same way a remote monitor polls the HTTP API.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	prog "github.com/jorge-barreto/tome/internal/progress"
)

// PollInterval matches the reference monitor.
const PollInterval = 2 * time.Second

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

// Getter reads one snapshot. progress.Store satisfies it.
type Getter interface {
	Get(ctx context.Context, runID string) (*prog.Snapshot, error)
}

type snapshotMsg struct {
	snap *prog.Snapshot
	err  error
}

type tickMsg time.Time

// Model is the bubbletea model for one run.
type Model struct {
	ctx      context.Context
	store    Getter
	runID    string
	interval time.Duration

	bar     progress.Model
	spinner spinner.Model

	snap    *prog.Snapshot
	err     error
	waiting bool
	done    bool
}

// New returns a model polling store for runID.
func New(ctx context.Context, store Getter, runID string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctx:      ctx,
		store:    store,
		runID:    runID,
		interval: PollInterval,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner:  sp,
		waiting:  true,
	}
}

// Snapshot is the last snapshot received, or nil.
func (m Model) Snapshot() *prog.Snapshot { return m.snap }

// Done reports whether the run reached a terminal state.
func (m Model) Done() bool { return m.done }

func (m Model) fetch() tea.Msg {
	snap, err := m.store.Get(m.ctx, m.runID)
	return snapshotMsg{snap: snap, err: err}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = max(min(msg.Width-8, 80), 10)
	case tickMsg:
		return m, m.fetch
	case snapshotMsg:
		if msg.err != nil {
			// the record appears once PLAN finishes; keep polling
			m.waiting = errors.Is(msg.err, prog.ErrNotFound)
			if !m.waiting {
				m.err = msg.err
			}
			return m, m.tick()
		}
		m.snap, m.err, m.waiting = msg.snap, nil, false
		if msg.snap.Terminal() {
			m.done = true
			return m, tea.Quit
		}
		return m, m.tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("tome watch " + m.runID))
	b.WriteString("\n\n")

	if m.snap == nil {
		if m.err != nil {
			b.WriteString(failStyle.Render("error: " + m.err.Error()))
		} else {
			b.WriteString(m.spinner.View() + " waiting for the outline...")
		}
		b.WriteString("\n\nq to quit\n")
		return b.String()
	}

	s := m.snap
	fmt.Fprintf(&b, "%s\n", s.Topic)
	fmt.Fprintf(&b, "%s %s\n\n", statusText(s), detailStyle.Render(s.CurrentStep))
	b.WriteString(m.bar.ViewAs(float64(s.ProgressPercentage) / 100))
	fmt.Fprintf(&b, "\n%s\n", detailStyle.Render(fmt.Sprintf(
		"%d/%d chapters  %d/%d sections  %d words",
		s.CompletedChapters, s.TotalChapters, s.CompletedSections, s.TotalSections, s.TotalWordsGenerated)))
	if s.EstimatedTimeRemaining != "" && !s.Terminal() {
		b.WriteString(detailStyle.Render("about "+s.EstimatedTimeRemaining+" remaining") + "\n")
	}

	var steps []string
	for _, st := range s.Steps {
		line := stepMarker(st.Status, m.spinner.View()) + " " + st.Name
		switch {
		case st.Error != "":
			line += "  " + failStyle.Render(st.Error)
		case st.Details != "":
			line += "  " + detailStyle.Render(st.Details)
		}
		steps = append(steps, line)
	}
	b.WriteString("\n" + boxStyle.Render(strings.Join(steps, "\n")) + "\n")

	if s.Result != nil {
		fmt.Fprintf(&b, "\n%s %s\n", doneStyle.Render("Book:"), s.Result.ArtifactPath)
	}
	if m.err != nil {
		b.WriteString("\n" + failStyle.Render("poll error: "+m.err.Error()) + "\n")
	}
	if !m.done {
		b.WriteString("\nq to quit\n")
	}
	return b.String()
}

func statusText(s *prog.Snapshot) string {
	switch s.Status {
	case prog.StatusCompleted:
		return doneStyle.Render("completed")
	case prog.StatusFailed:
		if s.Reason != "" {
			return failStyle.Render("failed (" + s.Reason + ")")
		}
		return failStyle.Render("failed")
	default:
		return runningStyle.Render("in progress")
	}
}

func stepMarker(status, spin string) string {
	switch status {
	case prog.StepCompleted:
		return doneStyle.Render("✓")
	case prog.StepFailed:
		return failStyle.Render("✗")
	case prog.StepInProgress:
		return spin
	default:
		return pendingStyle.Render("·")
	}
}

// Run shows the monitor until the run finishes or the user quits. It
// returns the last snapshot seen.
func Run(ctx context.Context, store Getter, runID string) (*prog.Snapshot, error) {
	final, err := tea.NewProgram(New(ctx, store, runID), tea.WithContext(ctx)).Run()
	if m, ok := final.(Model); ok {
		return m.snap, err
	}
	return nil, err
}
