// Package process runs external console tools under supervision: scripted
// answers to interactive prompts, a bounded run time, and forced
// termination with a caller-chosen exit code.
package process

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultGracePeriod is how long a child gets to finish on its own
	// before scripted input is written.
	DefaultGracePeriod = time.Second

	// DefaultTimeout is the hard limit on a child's run time after the
	// grace period.
	DefaultTimeout = 300 * time.Second

	// DefaultExitCode is reported for a child that had to be killed.
	DefaultExitCode = 99
)

// Invocation describes one supervised run of an external command.
// It is immutable once built.
type Invocation struct {
	// Step names the invocation in logs and metrics ("format", "convert").
	Step string

	// Path is the executable to start.
	Path string

	// Args is the argument vector, Args[0] included. If empty, Path is used.
	Args []string

	// CommandLine, when set, is passed verbatim as the Windows command line
	// instead of an escaped rendering of Args. cmd.exe /C needs this for
	// arguments like /V:"" that Windows argv escaping would mangle.
	CommandLine string

	// Input is written to the child's stdin if it is still running after
	// the grace period. Empty means no scripted input.
	Input []byte

	// GracePeriod defaults to DefaultGracePeriod when zero.
	GracePeriod time.Duration

	// Timeout defaults to DefaultTimeout when zero.
	Timeout time.Duration

	// DefaultExitCode is the exit code reported when the child is killed.
	DefaultExitCode int
}

// withDefaults fills in zero durations.
func (inv Invocation) withDefaults() Invocation {
	if inv.GracePeriod <= 0 {
		inv.GracePeriod = DefaultGracePeriod
	}
	if inv.Timeout <= 0 {
		inv.Timeout = DefaultTimeout
	}
	if inv.Step == "" {
		inv.Step = "command"
	}
	return inv
}

// argv returns the argument vector, defaulting to just Path.
func (inv Invocation) argv() []string {
	if len(inv.Args) > 0 {
		return inv.Args
	}
	return []string{inv.Path}
}

// String returns the command as it would be typed (for debugging).
func (inv Invocation) String() string {
	if inv.CommandLine != "" {
		return inv.Path + " " + inv.CommandLine
	}
	return strings.Join(inv.argv(), " ")
}

// Completion describes how an invocation ended.
type Completion int

const (
	// CompletionExited means the child exited on its own before the timeout.
	CompletionExited Completion = iota

	// CompletionKilled means the child was forcibly terminated after the
	// hard timeout or a context cancellation.
	CompletionKilled

	// CompletionSpawnFailed means the child was never started.
	CompletionSpawnFailed
)

// String returns a human-readable name for the completion status.
func (c Completion) String() string {
	switch c {
	case CompletionExited:
		return "exited"
	case CompletionKilled:
		return "killed"
	case CompletionSpawnFailed:
		return "spawn_failed"
	default:
		return "unknown"
	}
}

// Outcome captures the result of an invocation.
type Outcome struct {
	RunID      string
	Step       string
	ExitCode   int
	Completion Completion
	Duration   time.Duration

	// InputErr is set when scripted input could not be written. It does
	// not change the completion status.
	InputErr error

	// Output holds the most recent lines the child wrote to stdout/stderr.
	Output []string
}

// Success reports whether the child exited on its own with code 0.
func (o Outcome) Success() bool {
	return o.Completion == CompletionExited && o.ExitCode == 0
}

// String returns a one-line summary of the outcome.
func (o Outcome) String() string {
	return fmt.Sprintf("%s: %s exit_code=%d duration=%s",
		o.Step, o.Completion, o.ExitCode, o.Duration.Round(time.Millisecond))
}
