package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/usbprep/internal/prep"
	"github.com/randomizedcoder/usbprep/internal/stats"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// StatusMsg carries one drive status transition.
type StatusMsg prep.Update

// DoneMsg signals that every drive has been handled.
type DoneMsg struct {
	Err error
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// driveState is the dashboard's view of one drive.
type driveState struct {
	status  prep.Status
	started time.Time
	changed time.Time
	ended   time.Time
	err     error
}

// Model represents the TUI state.
type Model struct {
	// Configuration
	drives      []string
	strategy    string
	metricsAddr string

	// Current state
	states     map[string]*driveState
	snapshot   stats.Snapshot
	startTime  time.Time
	lastUpdate time.Time
	done       bool
	doneErr    error

	// Display options
	width  int
	height int

	// Stats source (for fetching step timings)
	statsSource StatsSource

	// Set when the user quit before the run finished.
	interrupted bool
	quitting    bool
}

// StatsSource provides step statistics. *stats.Recorder implements it.
type StatsSource interface {
	Snapshot() stats.Snapshot
	Running(step string) (time.Duration, bool)
}

// Config holds TUI configuration.
type Config struct {
	Drives      []string
	Strategy    string
	MetricsAddr string
	StatsSource StatsSource
}

// New creates a new TUI model.
func New(cfg Config) Model {
	states := make(map[string]*driveState, len(cfg.Drives))
	for _, d := range cfg.Drives {
		states[d] = &driveState{status: prep.StatusPending}
	}
	return Model{
		drives:      append([]string(nil), cfg.Drives...),
		strategy:    cfg.Strategy,
		metricsAddr: cfg.MetricsAddr,
		statsSource: cfg.StatsSource,
		states:      states,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			m.interrupted = !m.done
			return m, tea.Quit
		case "r":
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.statsSource != nil {
			m.snapshot = m.statsSource.Snapshot()
		}
		m.lastUpdate = time.Now()
		if m.done {
			return m, nil
		}
		return m, tickCmd()

	case StatusMsg:
		m.applyStatus(prep.Update(msg))
		return m, nil

	case DoneMsg:
		m.done = true
		m.doneErr = msg.Err
		if m.statsSource != nil {
			m.snapshot = m.statsSource.Snapshot()
		}
		return m, tea.Quit

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// applyStatus records a status transition, adding drives not seen before.
// States are copied so earlier Model values stay unchanged.
func (m *Model) applyStatus(u prep.Update) {
	states := make(map[string]*driveState, len(m.states)+1)
	for k, v := range m.states {
		states[k] = v
	}

	var next driveState
	if prev, ok := states[u.Drive]; ok {
		next = *prev
	} else {
		m.drives = append(append([]string(nil), m.drives...), u.Drive)
	}

	at := u.At
	if at.IsZero() {
		at = time.Now()
	}
	if next.started.IsZero() && u.Status != prep.StatusPending {
		next.started = at
	}
	next.status = u.Status
	next.changed = at
	next.err = u.Err
	if u.Status.Terminal() {
		next.ended = at
	}

	states[u.Drive] = &next
	m.states = states
	m.lastUpdate = time.Now()
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting && !m.done {
		return ""
	}
	return m.renderSummaryView()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the run started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// Interrupted reports whether the user quit before the run finished.
func (m Model) Interrupted() bool {
	return m.interrupted
}

// Status returns the last known status of a drive.
func (m Model) Status(drive string) prep.Status {
	if s, ok := m.states[drive]; ok {
		return s.status
	}
	return prep.StatusPending
}

// Finished returns how many drives reached a terminal status, and how
// many of those failed.
func (m Model) Finished() (finished, failed int) {
	for _, d := range m.drives {
		s := m.states[d]
		if s == nil || !s.status.Terminal() {
			continue
		}
		finished++
		if s.status == prep.StatusFailed {
			failed++
		}
	}
	return finished, failed
}

// Progress returns the fraction of drives finished (0.0 to 1.0).
func (m Model) Progress() float64 {
	if len(m.drives) == 0 {
		return 0
	}
	finished, _ := m.Finished()
	return float64(finished) / float64(len(m.drives))
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendStatus sends a drive status update to the TUI.
func SendStatus(p *tea.Program, u prep.Update) {
	if p != nil {
		p.Send(StatusMsg(u))
	}
}

// SendDone tells the TUI the run has finished.
func SendDone(p *tea.Program, err error) {
	if p != nil {
		p.Send(DoneMsg{Err: err})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatMs formats a duration as milliseconds.
func formatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}

// formatStepDuration picks ms below ten seconds and HH:MM:SS above.
func formatStepDuration(d time.Duration) string {
	if d < 10*time.Second {
		return formatMs(d)
	}
	return formatDuration(d)
}
