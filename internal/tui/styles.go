// Package tui provides a live terminal dashboard for drive preparation.
//
// The TUI uses Bubble Tea for the application framework and Lipgloss for styling.
// It displays:
// - Per-drive status and elapsed time
// - Overall progress
// - Step duration percentiles and kill counts
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/usbprep/internal/prep"
)

// =============================================================================
// Palette
// =============================================================================

var (
	colorAccent = lipgloss.Color("#2563EB") // header background
	colorTitle  = lipgloss.Color("#38BDF8")
	colorText   = lipgloss.Color("#E2E8F0")
	colorMuted  = lipgloss.Color("#94A3B8")
	colorDim    = lipgloss.Color("#64748B")
	colorRule   = lipgloss.Color("#334155")

	colorGood = lipgloss.Color("#22C55E")
	colorBusy = lipgloss.Color("#EAB308")
	colorBad  = lipgloss.Color("#DC2626")
	colorNote = lipgloss.Color("#60A5FA")
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func bold(c lipgloss.Color) lipgloss.Style {
	return fg(c).Bold(true)
}

// =============================================================================
// Styles
// =============================================================================

var (
	mutedStyle = fg(colorMuted)
	dimStyle   = fg(colorDim)

	statusOK    = bold(colorGood)
	statusError = bold(colorBad)
	statusInfo  = bold(colorNote)

	valueStyle    = bold(colorText)
	valueBadStyle = bold(colorBad)
	labelStyle    = fg(colorMuted).Width(20)

	headerStyle = bold(colorText).
			Background(colorAccent).
			Padding(0, 1).
			MarginBottom(1)

	sectionHeaderStyle = bold(colorTitle).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorRule).
				MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorRule).
			Padding(0, 1)

	footerStyle = fg(colorMuted).MarginTop(1)

	tableHeaderStyle = bold(colorTitle)
	tableCellStyle   = fg(colorText).PaddingRight(2)

	barFilledStyle  = fg(colorAccent)
	barEmptyStyle   = fg(colorRule)
	barPercentStyle = bold(colorText)
)

// statusLook is how one drive status is drawn.
type statusLook struct {
	icon  string
	style lipgloss.Style
}

var statusLooks = map[prep.Status]statusLook{
	prep.StatusPending:              {"·", dimStyle},
	prep.StatusFormatting:           {"●", bold(colorBusy)},
	prep.StatusActivating:           {"●", statusInfo},
	prep.StatusInstallingBootloader: {"●", statusInfo},
	prep.StatusComplete:             {"✓", statusOK},
	prep.StatusFailed:               {"✗", statusError},
}

func lookFor(s prep.Status) statusLook {
	if l, ok := statusLooks[s]; ok {
		return l
	}
	return statusLook{"?", mutedStyle}
}

// GetStatusStyle returns the style for a drive status.
func GetStatusStyle(s prep.Status) lipgloss.Style {
	return lookFor(s).style
}

// GetStatusLabel returns a styled status label with an indicator.
func GetStatusLabel(s prep.Status) string {
	l := lookFor(s)
	return l.style.Render(l.icon + " " + s.String())
}

// =============================================================================
// Helper Functions
// =============================================================================

// RenderKeyValue renders a label-value pair.
func RenderKeyValue(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Render(value),
	)
}

// RenderProgressBar renders progress (0..1) as a bar at least 10 cells wide.
func RenderProgressBar(progress float64, width int) string {
	width = max(width, 10)
	filled := min(max(int(progress*float64(width)), 0), width)

	return barFilledStyle.Render(repeatChar('█', filled)) +
		barEmptyStyle.Render(repeatChar('░', width-filled)) +
		barPercentStyle.Render(fmt.Sprintf(" %3.0f%%", progress*100))
}

func repeatChar(char rune, count int) string {
	if count <= 0 {
		return ""
	}
	return strings.Repeat(string(char), count)
}
