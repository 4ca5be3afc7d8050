package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderSummaryView renders the main dashboard.
func (m Model) renderSummaryView() string {
	sections := []string{
		m.renderHeader(),
		m.renderProgress(),
		m.renderDriveTable(),
	}

	if len(m.snapshot.Steps) > 0 {
		sections = append(sections, m.renderStepTable())
	}

	if errs := m.renderErrors(); errs != "" {
		sections = append(sections, errs)
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	finished, _ := m.Finished()
	header := fmt.Sprintf(
		" usbprep │ %s │ Drives: %d/%d │ Elapsed: %s ",
		m.strategy,
		finished,
		len(m.drives),
		formatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Progress Section
// =============================================================================

func (m Model) renderProgress() string {
	progress := m.Progress()

	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}
	progressBar := RenderProgressBar(progress, barWidth)

	finished, failed := m.Finished()
	var status string
	switch {
	case m.done && failed > 0:
		status = statusError.Render(fmt.Sprintf("✗ %d of %d drives failed", failed, len(m.drives)))
	case m.done:
		status = statusOK.Render("✓ All drives prepared")
	default:
		status = statusInfo.Render(fmt.Sprintf("Preparing... %d/%d", finished, len(m.drives)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Progress"),
		progressBar,
		status,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Drive Table
// =============================================================================

const (
	driveColWidth  = 12
	statusColWidth = 26
	timeColWidth   = 10
)

func (m Model) renderDriveTable() string {
	if len(m.drives) == 0 {
		return boxStyle.Width(m.width - 2).Render(dimStyle.Render("No drives selected."))
	}

	header := lipgloss.JoinHorizontal(lipgloss.Left,
		tableHeaderStyle.Width(driveColWidth).Render("Drive"),
		tableHeaderStyle.Width(statusColWidth).Render("Status"),
		tableHeaderStyle.Width(timeColWidth).Render("In status"),
		tableHeaderStyle.Width(timeColWidth).Render("Total"),
	)

	maxRows := m.height - 14
	if maxRows < 5 {
		maxRows = 5
	}

	now := time.Now()
	rows := make([]string, 0, len(m.drives))
	for i, d := range m.drives {
		if i >= maxRows {
			rows = append(rows, dimStyle.Render(fmt.Sprintf("... and %d more drives", len(m.drives)-maxRows)))
			break
		}
		s := m.states[d]

		inStatus, total := "-", "-"
		if !s.started.IsZero() {
			end := now
			if !s.ended.IsZero() {
				end = s.ended
			}
			total = formatDuration(end.Sub(s.started))
			if !s.status.Terminal() {
				inStatus = formatDuration(now.Sub(s.changed))
			}
		}

		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			tableCellStyle.Width(driveColWidth).Render(d),
			lipgloss.NewStyle().Width(statusColWidth).Render(GetStatusLabel(s.status)),
			tableCellStyle.Width(timeColWidth).Render(inStatus),
			tableCellStyle.Width(timeColWidth).Render(total),
		))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{
			sectionHeaderStyle.Render("Drives"),
			header,
		}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Step Timings
// =============================================================================

func (m Model) renderStepTable() string {
	header := tableHeaderStyle.Render(
		fmt.Sprintf("%-10s %6s %10s %10s %10s %7s", "Step", "Runs", "P50", "P95", "Max", "Killed"),
	)

	rows := make([]string, 0, len(m.snapshot.Steps)+1)
	for _, s := range m.snapshot.Steps {
		row := fmt.Sprintf("%-10s %6d %10s %10s %10s %7d",
			s.Step,
			s.Count,
			formatStepDuration(s.P50),
			formatStepDuration(s.P95),
			formatStepDuration(s.Max),
			s.Killed,
		)
		if s.Killed > 0 || s.SpawnFailed > 0 {
			rows = append(rows, valueBadStyle.Render(row))
		} else {
			rows = append(rows, tableCellStyle.Render(row))
		}
	}

	if m.statsSource != nil {
		for _, s := range m.snapshot.Steps {
			if running, ok := m.statsSource.Running(s.Step); ok {
				rows = append(rows, statusInfo.Render(
					fmt.Sprintf("● %s running for %s", s.Step, formatStepDuration(running))))
			}
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{
			sectionHeaderStyle.Render("Steps"),
			header,
		}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Errors
// =============================================================================

func (m Model) renderErrors() string {
	var rows []string
	for _, d := range m.drives {
		s := m.states[d]
		if s.err == nil {
			continue
		}
		msg := s.err.Error()
		if maxLen := m.width - 16; maxLen > 10 && len(msg) > maxLen {
			msg = msg[:maxLen-3] + "..."
		}
		rows = append(rows, RenderKeyValue(d, msg))
	}
	if len(rows) == 0 {
		return ""
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Errors")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	shortcuts := []string{
		"q: quit",
		"r: refresh",
	}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))
	right := ""
	if m.metricsAddr != "" {
		right = dimStyle.Render("Metrics: http://" + m.metricsAddr + "/metrics")
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			mutedStyle.Render(right),
		),
	)
}
