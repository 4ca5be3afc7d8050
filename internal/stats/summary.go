package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	ruleHeavy = "═══════════════════════════════════════════════════════════════════════════════\n"
	ruleLight = "───────────────────────────────────────────────────────────────────────────────\n"
)

// SummaryConfig holds configuration for summary formatting.
type SummaryConfig struct {
	// Host is the detected (or overridden) OS version.
	Host string

	// Strategy is the format strategy that was selected.
	Strategy string

	// DefaultExitCode is the code reported for killed commands.
	DefaultExitCode int

	// MetricsAddr is the Prometheus metrics endpoint address
	MetricsAddr string

	// MetricsFile is the textfile the metrics were written to.
	MetricsFile string
}

// FormatExitSummary formats a snapshot for display at program exit.
func FormatExitSummary(snap Snapshot, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(ruleHeavy)
	b.WriteString("                              usbprep Exit Summary\n")
	b.WriteString(ruleHeavy + "\n")

	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(snap.Elapsed))
	if cfg.Host != "" {
		fmt.Fprintf(&b, "Host:                   %s\n", cfg.Host)
	}
	if cfg.Strategy != "" {
		fmt.Fprintf(&b, "Format Strategy:        %s\n", cfg.Strategy)
	}
	fmt.Fprintf(&b, "Drives:                 %d (%d failed)\n\n", len(snap.Drives), snap.Failed())

	if len(snap.Drives) > 0 {
		writeSection(&b, "Drives")
		for _, d := range snap.Drives {
			fmt.Fprintf(&b, "  %-12s %-22s %10s\n", d.Drive, d.Status, FormatMs(d.Duration))
			if d.Err != nil {
				fmt.Fprintf(&b, "    error: %v\n", d.Err)
			}
		}
		b.WriteString("\n")
	}

	if len(snap.Steps) > 0 {
		writeSection(&b, "Commands")
		fmt.Fprintf(&b, "  %-10s %6s %6s %6s %6s %10s %10s %10s\n",
			"Step", "Runs", "Exit≠0", "Killed", "Spawn", "P50", "P95", "Max")
		b.WriteString("  " + strings.Repeat("─", 72) + "\n")
		for _, s := range snap.Steps {
			fmt.Fprintf(&b, "  %-10s %6d %6d %6d %6d %10s %10s %10s\n",
				s.Step, s.Count, s.NonZero, s.Killed, s.SpawnFailed,
				FormatMs(s.P50), FormatMs(s.P95), FormatMs(s.Max))
		}
		for _, s := range snap.Steps {
			if s.InputErrors > 0 {
				fmt.Fprintf(&b, "\n  %s: scripted input could not be written %d time(s)\n", s.Step, s.InputErrors)
			}
		}
		b.WriteString("\n")
	}

	if len(snap.ExitCodes) > 0 {
		writeSection(&b, "Exit Codes")

		codes := make([]int, 0, len(snap.ExitCodes))
		for code := range snap.ExitCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)

		for _, code := range codes {
			label := exitCodeLabel(code, cfg.DefaultExitCode)
			fmt.Fprintf(&b, "  %3d %-16s %d\n", code, label, snap.ExitCodes[code])
		}
		b.WriteString("\n")
	}

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}
	if cfg.MetricsFile != "" {
		fmt.Fprintf(&b, "Metrics written to:   %s\n", cfg.MetricsFile)
	}

	b.WriteString(ruleHeavy)
	return b.String()
}

func writeSection(b *strings.Builder, title string) {
	b.WriteString(ruleLight)
	pad := (len([]rune(ruleLight)) - 1 - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	b.WriteString(strings.Repeat(" ", pad) + title + "\n")
	b.WriteString(ruleLight + "\n")
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code, killed int) string {
	switch {
	case code == 0:
		return "(clean)"
	case killed != 0 && code == killed:
		return "(killed)"
	case code == 1:
		return "(error)"
	case code == 4:
		return "(fatal error)"
	case code == 5:
		return "(declined)"
	case code == 137:
		return "(SIGKILL)"
	default:
		return ""
	}
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		// Sub-millisecond, show microseconds
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}
