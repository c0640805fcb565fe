// Package tui implements the Bubble Tea terminal UI that watches an analysis
// job and browses its report once it finishes.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/prlens/internal/jobs"
)

// Source reads job state, typically through the API client.
type Source interface {
	Status(ctx context.Context, id string) (*jobs.StatusView, error)
	Result(ctx context.Context, id string) (*jobs.ResultView, error)
}

const requestTimeout = 10 * time.Second

type (
	statusMsg struct{ view *jobs.StatusView }
	resultMsg struct{ view *jobs.ResultView }
	errMsg    struct{ err error }
	pollMsg   struct{}
)

// Model is the top-level Bubble Tea model for watching a job.
type Model struct {
	src      Source
	taskID   string
	interval time.Duration
	spinner  spinner.Model

	status *jobs.StatusView
	result *jobs.ResultView
	err    error

	// UI state
	width  int
	height int

	fileIndex    int
	scrollOffset int
	viewHeight   int
	lines        []issueLine

	showHelp bool
}

// New creates a model that polls src every interval for job taskID.
func New(src Source, taskID string, interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return Model{
		src:      src,
		taskID:   taskID,
		interval: interval,
		spinner:  sp,
	}
}

// Result returns the final job outcome, or nil while the job is running.
func (m Model) Result() *jobs.ResultView { return m.result }

// Err returns the error that stopped watching, if any.
func (m Model) Err() error { return m.err }

func (m Model) finished() bool {
	return m.result != nil || errors.Is(m.err, jobs.ErrNotFound)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchStatus())
}

func (m Model) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		v, err := m.src.Status(ctx, m.taskID)
		if err != nil {
			return errMsg{err}
		}
		return statusMsg{v}
	}
}

func (m Model) fetchResult() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		v, err := m.src.Result(ctx, m.taskID)
		if err != nil {
			return errMsg{err}
		}
		return resultMsg{v}
	}
}

func (m Model) schedulePoll() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return pollMsg{} })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewHeight = m.height - 6 // status bar + borders + file header
		return m, nil

	case spinner.TickMsg:
		if m.finished() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusMsg:
		m.status = msg.view
		m.err = nil
		if msg.view.Status.Terminal() {
			return m, m.fetchResult()
		}
		return m, m.schedulePoll()

	case pollMsg:
		return m, m.fetchStatus()

	case resultMsg:
		m.result = msg.view
		m.err = nil
		m.fileIndex = 0
		m.scrollOffset = 0
		m.updateLines()
		return m, nil

	case errMsg:
		m.err = msg.err
		if errors.Is(msg.err, jobs.ErrNotFound) {
			return m, nil
		}
		// Transient failures keep polling.
		return m, m.schedulePoll()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, keys.Down):
		if m.scrollOffset < len(m.lines)-1 {
			m.scrollOffset++
		}

	case key.Matches(msg, keys.Up):
		if m.scrollOffset > 0 {
			m.scrollOffset--
		}

	case key.Matches(msg, keys.NextFile):
		if m.fileIndex < len(m.files())-1 {
			m.fileIndex++
			m.scrollOffset = 0
			m.updateLines()
		}

	case key.Matches(msg, keys.PrevFile):
		if m.fileIndex > 0 {
			m.fileIndex--
			m.scrollOffset = 0
			m.updateLines()
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	if m.result == nil || len(m.files()) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.renderJobPanel(m.height-1),
			m.renderStatusBar())
	}

	listWidth := m.fileListWidth()
	issueWidth := m.width - listWidth - 1

	main := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderFileList(listWidth, m.height-2),
		" ",
		m.renderIssueView(issueWidth, m.height-2))

	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

// Run watches job taskID until the user quits and returns the last result
// seen, which is nil if the job had not finished.
func Run(src Source, taskID string, interval time.Duration) (*jobs.ResultView, error) {
	p := tea.NewProgram(New(src, taskID, interval), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m := final.(Model)
	if m.result == nil && m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}
