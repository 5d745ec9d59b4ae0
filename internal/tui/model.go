// Package tui renders a live view of a monitoring session in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/voluzi/memwatch/pkg/chart"
	"github.com/voluzi/memwatch/pkg/monitor"
	"github.com/voluzi/memwatch/pkg/statscollector"
)

// Stopper ends the running session.
type Stopper interface {
	Stop()
}

type snapshotMsg monitor.Snapshot

type closedMsg struct{}

const followLatest = -1

type Model struct {
	stopper Stopper
	updates <-chan monitor.Snapshot

	snap  monitor.Snapshot
	table table.Model
	help  help.Model

	// cursor indexes the tick under inspection, or followLatest.
	cursor int
	width  int

	stopRequested bool
	quitting      bool
}

func NewModel(stopper Stopper, updates <-chan monitor.Snapshot) Model {
	columns := []table.Column{
		{Title: "PROCESS", Width: 20},
		{Title: "CURRENT", Width: 10},
		{Title: "MAX (MB)", Width: 10},
		{Title: "MIN (MB)", Width: 10},
		{Title: "MEAN (MB)", Width: 10},
		{Title: "3σ (MB)", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(8),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return Model{
		stopper: stopper,
		updates: updates,
		table:   t,
		help:    help.New(),
		cursor:  followLatest,
		width:   80,
	}
}

func waitForSnapshot(updates <-chan monitor.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case snapshotMsg:
		m.snap = monitor.Snapshot(msg)
		m.updateRows()
		if m.snap.State.Terminal() {
			m.quitting = true
			return m, tea.Quit
		}
		return m, waitForSnapshot(m.updates)

	case closedMsg:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.requestStop()
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Stop):
			m.requestStop()
			return m, nil
		case key.Matches(msg, keys.Left):
			m.moveCursor(-1)
			return m, nil
		case key.Matches(msg, keys.Right):
			m.moveCursor(1)
			return m, nil
		case key.Matches(msg, keys.Live):
			m.cursor = followLatest
			return m, nil
		case key.Matches(msg, keys.Up), key.Matches(msg, keys.Down):
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *Model) requestStop() {
	if m.stopRequested || m.stopper == nil {
		return
	}
	m.stopRequested = true
	m.stopper.Stop()
}

// moveCursor steps through recorded ticks. Moving past the newest tick
// resumes following live updates.
func (m *Model) moveCursor(delta int) {
	ticks := m.ticks()
	if ticks == 0 {
		return
	}
	pos := m.cursor
	if pos == followLatest {
		pos = ticks - 1
	}
	pos += delta
	switch {
	case pos < 0:
		pos = 0
	case pos >= ticks-1 && delta > 0:
		pos = followLatest
	}
	m.cursor = pos
}

// ticks returns the number of recorded timestamps.
func (m Model) ticks() int {
	n := 0
	for _, series := range m.snap.Series {
		n = max(n, series.Len())
	}
	return n
}

// cursorTime returns the timestamp under the cursor.
func (m Model) cursorTime() (time.Time, bool) {
	for _, series := range m.snap.Ordered() {
		n := series.Len()
		if n == 0 {
			continue
		}
		idx := m.cursor
		if idx == followLatest || idx >= n {
			idx = n - 1
		}
		return series.Samples[idx].Timestamp, true
	}
	return time.Time{}, false
}

func (m *Model) updateRows() {
	rows := make([]table.Row, 0, len(m.snap.Series))
	for _, series := range m.snap.Ordered() {
		rows = append(rows, seriesRow(series))
	}
	m.table.SetRows(rows)
}

func seriesRow(series statscollector.Series) table.Row {
	current := "-"
	if n := len(series.Samples); n > 0 {
		current = datasize.ByteSize(series.Samples[n-1].Bytes).HR()
	}
	sum := series.Live.Rounded()
	return table.Row{
		series.Name,
		current,
		fmt.Sprintf("%.2f", sum.Max),
		fmt.Sprintf("%.2f", sum.Min),
		fmt.Sprintf("%.2f", sum.Mean),
		fmt.Sprintf("%.2f", sum.Sigma3),
	}
}

// hover returns the sample nearest to the cursor time and the selected
// process's value at that time.
func (m Model) hover() (chart.Point, bool) {
	at, ok := m.cursorTime()
	if !ok {
		return chart.Point{}, false
	}

	ordered := m.snap.Ordered()
	lines := make([]chart.Line, 0, len(ordered))
	for _, series := range ordered {
		lines = append(lines, chart.FromSeries(series))
	}

	idx := m.table.Cursor()
	if idx < 0 || idx >= len(lines) {
		idx = 0
	}
	anchor, ok := chart.NearestInTime(lines[idx], at)
	if !ok {
		return chart.Point{}, false
	}
	return chart.Nearest(lines, at, anchor.MB)
}

// Run drives the live view until the session ends or the user quits. Quitting
// stops the session.
func Run(ctx context.Context, stopper Stopper, updates <-chan monitor.Snapshot) error {
	p := tea.NewProgram(NewModel(stopper, updates), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
