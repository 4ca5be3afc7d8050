package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/usbprep/internal/prep"
	"github.com/randomizedcoder/usbprep/internal/stats"
)

// =============================================================================
// Mock StatsSource
// =============================================================================

type mockStatsSource struct {
	snap    stats.Snapshot
	running map[string]time.Duration
}

func (m *mockStatsSource) Snapshot() stats.Snapshot {
	return m.snap
}

func (m *mockStatsSource) Running(step string) (time.Duration, bool) {
	d, ok := m.running[step]
	return d, ok
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// =============================================================================
// Tests: New
// =============================================================================

func TestNew(t *testing.T) {
	model := New(Config{
		Drives:      []string{"E:", "F:"},
		Strategy:    "modern",
		MetricsAddr: "localhost:9101",
	})

	if len(model.drives) != 2 {
		t.Errorf("drives = %v, want 2", model.drives)
	}
	if model.Status("E:") != prep.StatusPending {
		t.Errorf("Status(E:) = %v, want pending", model.Status("E:"))
	}
	if model.strategy != "modern" {
		t.Errorf("strategy = %s, want modern", model.strategy)
	}
	if model.metricsAddr != "localhost:9101" {
		t.Errorf("metricsAddr = %s, want localhost:9101", model.metricsAddr)
	}
	if model.width != 80 || model.height != 24 {
		t.Errorf("size = %dx%d, want 80x24", model.width, model.height)
	}
}

func TestModel_Init(t *testing.T) {
	if New(Config{}).Init() == nil {
		t.Error("Init() returned nil cmd")
	}
}

// =============================================================================
// Tests: Update - Key Messages
// =============================================================================

func TestModel_Update_QuitKeys(t *testing.T) {
	tests := []struct {
		key      string
		wantQuit bool
	}{
		{"q", true},
		{"ctrl+c", true},
		{"esc", true},
		{"r", false},
		{"x", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			model := New(Config{Drives: []string{"E:"}})
			msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(tt.key)}
			if tt.key == "ctrl+c" {
				msg = tea.KeyMsg{Type: tea.KeyCtrlC}
			} else if tt.key == "esc" {
				msg = tea.KeyMsg{Type: tea.KeyEsc}
			}

			m, cmd := update(t, model, msg)

			if m.quitting != tt.wantQuit {
				t.Errorf("quitting = %v, want %v", m.quitting, tt.wantQuit)
			}
			if m.Interrupted() != tt.wantQuit {
				t.Errorf("Interrupted() = %v, want %v", m.Interrupted(), tt.wantQuit)
			}
			if tt.wantQuit && cmd == nil {
				t.Error("expected tea.Quit cmd")
			}
		})
	}
}

func TestModel_Update_QuitAfterDoneNotInterrupted(t *testing.T) {
	m, _ := update(t, New(Config{Drives: []string{"E:"}}), DoneMsg{})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if m.Interrupted() {
		t.Error("quitting after the run finished is not an interruption")
	}
}

// =============================================================================
// Tests: Update - Window Size
// =============================================================================

func TestModel_Update_WindowSize(t *testing.T) {
	m, cmd := update(t, New(Config{}), tea.WindowSizeMsg{Width: 120, Height: 40})
	if m.width != 120 || m.height != 40 {
		t.Errorf("size = %dx%d, want 120x40", m.width, m.height)
	}
	if cmd != nil {
		t.Error("WindowSizeMsg should not return a cmd")
	}
}

// =============================================================================
// Tests: Update - Status and Ticks
// =============================================================================

func TestModel_Update_Status(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	model := New(Config{Drives: []string{"E:", "F:"}})

	m, _ := update(t, model, StatusMsg{Drive: "E:", Status: prep.StatusFormatting, At: start})
	m, _ = update(t, m, StatusMsg{Drive: "E:", Status: prep.StatusActivating, At: start.Add(30 * time.Second)})

	if m.Status("E:") != prep.StatusActivating {
		t.Errorf("Status(E:) = %v, want activating", m.Status("E:"))
	}
	s := m.states["E:"]
	if !s.started.Equal(start) {
		t.Errorf("started = %v, want the first transition %v", s.started, start)
	}
	if model.Status("E:") != prep.StatusPending {
		t.Error("Update must not mutate the original model")
	}

	m, _ = update(t, m, StatusMsg{Drive: "E:", Status: prep.StatusComplete, At: start.Add(time.Minute)})
	finished, failed := m.Finished()
	if finished != 1 || failed != 0 {
		t.Errorf("Finished() = %d, %d; want 1, 0", finished, failed)
	}
	if m.Progress() != 0.5 {
		t.Errorf("Progress() = %v, want 0.5", m.Progress())
	}
}

func TestModel_Update_StatusUnknownDrive(t *testing.T) {
	m, _ := update(t, New(Config{}), StatusMsg{Drive: "G:", Status: prep.StatusFailed, Err: errors.New("boom")})

	if len(m.drives) != 1 || m.drives[0] != "G:" {
		t.Fatalf("drives = %v, want [G:]", m.drives)
	}
	if _, failed := m.Finished(); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}

func TestModel_Update_Tick(t *testing.T) {
	src := &mockStatsSource{snap: stats.Snapshot{Steps: []stats.StepSummary{{Step: "format", Count: 1}}}}
	m, cmd := update(t, New(Config{StatsSource: src}), TickMsg(time.Now()))

	if len(m.snapshot.Steps) != 1 {
		t.Errorf("snapshot not refreshed: %+v", m.snapshot)
	}
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
}

func TestModel_Update_Done(t *testing.T) {
	src := &mockStatsSource{}
	m, cmd := update(t, New(Config{StatsSource: src}), DoneMsg{Err: errors.New("one failed")})

	if !m.done || m.doneErr == nil {
		t.Error("DoneMsg should mark the model done")
	}
	if cmd == nil {
		t.Error("DoneMsg should quit")
	}

	_, cmd = update(t, m, TickMsg(time.Now()))
	if cmd != nil {
		t.Error("ticks stop after the run is done")
	}
}

func TestModel_Update_QuitMsg(t *testing.T) {
	m, cmd := update(t, New(Config{}), QuitMsg{})
	if !m.quitting || cmd == nil {
		t.Error("QuitMsg should quit")
	}
}

// =============================================================================
// Tests: Send helpers
// =============================================================================

func TestSendHelpers_NilProgram(t *testing.T) {
	SendStatus(nil, prep.Update{Drive: "E:"})
	SendDone(nil, nil)
	SendQuit(nil)
}

// =============================================================================
// Tests: Formatting
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{59 * time.Second, "00:00:59"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %s, want %s", tt.d, got, tt.want)
		}
	}
}

func TestFormatStepDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Microsecond, "500 µs"},
		{1500 * time.Millisecond, "1500 ms"},
		{90 * time.Second, "00:01:30"},
	}
	for _, tt := range tests {
		if got := formatStepDuration(tt.d); got != tt.want {
			t.Errorf("formatStepDuration(%v) = %s, want %s", tt.d, got, tt.want)
		}
	}
}

// =============================================================================
// Tests: View
// =============================================================================

func TestModel_View(t *testing.T) {
	src := &mockStatsSource{
		snap: stats.Snapshot{Steps: []stats.StepSummary{
			{Step: "format", Count: 2, Killed: 1, P50: 2 * time.Second, Max: 3 * time.Second},
		}},
		running: map[string]time.Duration{"format": 4 * time.Second},
	}
	model := New(Config{Drives: []string{"E:", "F:"}, Strategy: "legacy", MetricsAddr: "127.0.0.1:9101", StatsSource: src})
	m, _ := update(t, model, tea.WindowSizeMsg{Width: 120, Height: 40})
	m, _ = update(t, m, TickMsg(time.Now()))
	m, _ = update(t, m, StatusMsg{Drive: "E:", Status: prep.StatusFailed, Err: errors.New("format E: exited with code 4")})
	m, _ = update(t, m, StatusMsg{Drive: "F:", Status: prep.StatusFormatting})

	view := m.View()
	for _, want := range []string{
		"usbprep",
		"legacy",
		"Drives: 1/2",
		"E:",
		"failed",
		"formatting",
		"format",
		"running for",
		"exited with code 4",
		"127.0.0.1:9101",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_View_Quitting(t *testing.T) {
	m, _ := update(t, New(Config{Drives: []string{"E:"}}), QuitMsg{})
	if m.View() != "" {
		t.Error("view should be empty after an early quit")
	}

	m, _ = update(t, New(Config{Drives: []string{"E:"}}), DoneMsg{})
	if m.View() == "" {
		t.Error("the final view stays on screen after the run finishes")
	}
}

func TestModel_View_Done(t *testing.T) {
	m, _ := update(t, New(Config{Drives: []string{"E:"}}), StatusMsg{Drive: "E:", Status: prep.StatusComplete})
	m, _ = update(t, m, DoneMsg{})
	if !strings.Contains(m.View(), "All drives prepared") {
		t.Error("view should report success")
	}
}
