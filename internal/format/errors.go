package format

import (
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/randomizedcoder/usbprep/internal/process"
)

// StepError reports a failed supervised step of drive preparation.
type StepError struct {
	Step       string
	Drive      string
	ExitCode   int
	Completion process.Completion
	Duration   time.Duration

	// Err is the runner's error, nil when the command ran but failed.
	Err error
}

func (e *StepError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s %s %v", e.Step, e.Drive, e.Err)
	case e.Completion == process.CompletionKilled:
		return fmt.Sprintf("%s %s killed after timeout (exit code %d)", e.Step, e.Drive, e.ExitCode)
	default:
		return fmt.Sprintf("%s %s exited with code %d", e.Step, e.Drive, e.ExitCode)
	}
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StatusInternalError is the invoke status of a step killed at its
// timeout (Windows ERROR_INTERNAL_ERROR).
const StatusInternalError = 1359

// InvokeStatus is the status of the invocation itself, separate from the
// child's exit code: 0 when the command ran to completion,
// StatusInternalError when it was killed, the platform error number when
// starting or supervising it failed, and 1 for other runner errors.
func (e *StepError) InvokeStatus() int {
	if e.Err != nil {
		var errno syscall.Errno
		if errors.As(e.Err, &errno) && errno != 0 {
			return int(errno)
		}
		if e.Completion == process.CompletionKilled {
			return StatusInternalError
		}
		return 1
	}
	if e.Completion == process.CompletionKilled {
		return StatusInternalError
	}
	return 0
}
