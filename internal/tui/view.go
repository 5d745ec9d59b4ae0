package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/voluzi/memwatch/pkg/chart"
	"github.com/voluzi/memwatch/pkg/monitor"
)

const (
	progressWidth = 30
	nameWidth     = 20
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	sparkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	barFullStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	stateStyles  = map[monitor.State]lipgloss.Style{
		monitor.Idle:      mutedStyle,
		monitor.Running:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		monitor.Completed: lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true),
		monitor.Stopped:   lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
	}
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("memwatch"))
	if m.snap.SessionID != "" {
		b.WriteString(mutedStyle.Render(" session " + m.snap.SessionID))
	}
	b.WriteString("\n\n")

	b.WriteString(m.progressLine())
	b.WriteString("\n\n")

	if len(m.snap.Series) == 0 {
		b.WriteString(mutedStyle.Render("  waiting for the first sample..."))
		b.WriteString("\n\n")
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n\n")
		b.WriteString(m.sparklines())
		b.WriteString("\n")
		b.WriteString(m.cursorLine())
		b.WriteString("\n")
	}

	if m.stopRequested && m.snap.State == monitor.Running {
		b.WriteString(cursorStyle.Render("stopping after the current tick..."))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(keys))
	return b.String()
}

func (m Model) progressLine() string {
	cfg := m.snap.Config
	progress := min(m.snap.Progress(), 1)
	filled := int(progress * progressWidth)
	bar := barFullStyle.Render(strings.Repeat("█", filled)) +
		mutedStyle.Render(strings.Repeat("░", progressWidth-filled))

	style, ok := stateStyles[m.snap.State]
	if !ok {
		style = mutedStyle
	}
	return fmt.Sprintf("%s %3.0f%%  tick %d/%d  %s/%s  %s",
		bar,
		progress*100,
		m.snap.Tick,
		cfg.ExpectedTicks(),
		m.snap.Elapsed().Round(time.Second),
		cfg.Duration,
		style.Render(m.snap.State.String()),
	)
}

func (m Model) sparklines() string {
	width := max(m.width-nameWidth-2, 10)

	var b strings.Builder
	for _, series := range m.snap.Ordered() {
		name := series.Name
		if len(name) > nameWidth {
			name = name[:nameWidth-1] + "…"
		}
		b.WriteString(fmt.Sprintf("%-*s  %s\n", nameWidth, name, sparkStyle.Render(sparkline(series.Values(), width))))
	}
	return b.String()
}

func (m Model) cursorLine() string {
	mode := "live"
	if m.cursor != followLatest {
		mode = fmt.Sprintf("tick %d", m.cursor+1)
	}
	p, ok := m.hover()
	if !ok {
		return mutedStyle.Render(fmt.Sprintf("cursor [%s]", mode))
	}
	return describePoint(mode, p)
}

func describePoint(mode string, p chart.Point) string {
	return cursorStyle.Render(fmt.Sprintf("cursor [%s] %s  %s  %.2f MB",
		mode, p.Time.Local().Format(chart.TimeLayout), p.Name, p.MB))
}
