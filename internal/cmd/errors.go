package cmd

import (
	"errors"
	"fmt"

	"github.com/randomizedcoder/usbprep/internal/format"
	"github.com/randomizedcoder/usbprep/internal/process"
)

// ExitCodeError carries a process exit status out of a command.
type ExitCodeError struct {
	Code int
	Err  error
}

// NewExitCodeError returns an ExitCodeError with no message of its own.
func NewExitCodeError(code int) *ExitCodeError {
	return &ExitCodeError{Code: code}
}

func (e *ExitCodeError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

// stepExitError maps a format failure to the exit status of the step that
// failed. Failures without a usable child exit code exit 1.
func stepExitError(err error) error {
	var stepErr *format.StepError
	if !errors.As(err, &stepErr) {
		return err
	}
	code := stepErr.ExitCode
	if stepErr.Completion == process.CompletionSpawnFailed || code <= 0 || code > 255 {
		code = 1
	}
	return &ExitCodeError{Code: code, Err: err}
}
