package logging

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single output line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of recent child output lines kept.
	MaxBufferedLines = 64
)

// OutputHandler consumes the stdout and stderr of a child process. It keeps
// the most recent lines for failure reports and logs each line at a level
// chosen from its content.
type OutputHandler struct {
	step    string
	runID   string
	logger  *slog.Logger
	verbose bool

	buffer []string
	bufIdx int
	total  int
	mu     sync.Mutex
}

// NewOutputHandler creates a handler for one invocation.
func NewOutputHandler(step, runID string, logger *slog.Logger, verbose bool) *OutputHandler {
	return &OutputHandler{
		step:    step,
		runID:   runID,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// HandleReader reads r line by line until EOF or a read error.
// This should be run in a goroutine, one per stream.
func (h *OutputHandler) HandleReader(stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, MaxLineLength)
	scanner.Buffer(buf, MaxLineLength)
	scanner.Split(scanCRLF)

	for scanner.Scan() {
		h.HandleLine(stream, scanner.Text())
	}
}

// HandleLine records and logs a single line.
func (h *OutputHandler) HandleLine(stream, line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.total++
	h.mu.Unlock()

	level := classifyLine(line)
	if !h.verbose && level == slog.LevelDebug {
		return
	}
	h.logger.Log(context.Background(), level, "child_output",
		"step", h.step,
		"run_id", h.runID,
		"stream", stream,
		"line", line,
	)
}

// classifyLine maps tool output to a log level.
func classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	for _, p := range ErrorPatterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return slog.LevelWarn
		}
	}

	// Progress chatter from format.com / convert.exe
	if strings.Contains(lower, "percent completed") ||
		strings.Contains(lower, "initializing the file allocation table") {
		return slog.LevelDebug
	}

	return slog.LevelDebug
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (h *OutputHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}
	if n > h.total {
		n = h.total
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		lines = append(lines, h.buffer[idx])
	}
	return lines
}

// LineCount returns the number of non-empty lines seen.
func (h *OutputHandler) LineCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

// ErrorPatterns are output fragments from the Windows disk tools that
// indicate a failure worth surfacing without -v.
var ErrorPatterns = []string{
	"Access is denied",
	"Access denied",
	"Invalid media",
	"Track 0 bad",
	"cannot",
	"failed",
	"error",
	"Insufficient",
	"is in use",
	"not enough",
}

// CountErrors counts occurrences of error patterns in the buffered lines.
func (h *OutputHandler) CountErrors() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int)
	for _, line := range h.buffer {
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, pattern := range ErrorPatterns {
			if strings.Contains(lower, strings.ToLower(pattern)) {
				counts[pattern]++
			}
		}
	}
	return counts
}

// scanCRLF splits on \n or a bare \r. format.com redraws its progress line
// with carriage returns, which would otherwise build one enormous line.
func scanCRLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, c := range data {
		if c == '\n' {
			return i + 1, data[:i], nil
		}
		if c == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if atEOF {
				return i + 1, data[:i], nil
			}
			// Need one more byte to tell \r from \r\n.
			return 0, nil, nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
