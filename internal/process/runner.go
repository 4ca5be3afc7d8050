package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randomizedcoder/usbprep/internal/heap"
	"github.com/randomizedcoder/usbprep/internal/logging"
)

// drainTimeout bounds how long Run waits for output readers after the
// child is gone. A grandchild that escaped the kill can hold the write end
// open; closing the parent end in cleanup unblocks the reader anyway.
const drainTimeout = 2 * time.Second

// ErrInputIncomplete is recorded in Outcome.InputErr when the scripted
// input was still blocked on a full stdin pipe after the child was gone.
var ErrInputIncomplete = errors.New("scripted input not delivered")

// Observer is notified about every invocation. Implementations must be
// safe to call from the goroutine running Run.
type Observer interface {
	InvocationStarted(step string)
	InvocationFinished(out Outcome, err error)
}

// Config holds configuration for creating a Runner.
type Config struct {
	Logger    *slog.Logger
	Observers []Observer

	// Heap supplies the scripted input buffers. Nil uses a private
	// unlimited heap.
	Heap *heap.Heap

	// Verbose logs every line of child output, not just warnings.
	Verbose bool
}

// Runner starts and supervises external commands. A Runner holds no
// per-invocation state; concurrent Run calls are independent.
type Runner struct {
	logger    *slog.Logger
	observers []Observer
	heap      *heap.Heap
	verbose   bool

	// pipe creates the standard stream pipes. Replaced in tests.
	pipe func() (r, w *os.File, err error)
}

// New creates a Runner.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	h := cfg.Heap
	if h == nil {
		h = heap.New(heap.Config{})
	}
	return &Runner{
		logger:    logger,
		observers: cfg.Observers,
		heap:      h,
		verbose:   cfg.Verbose,
		pipe:      os.Pipe,
	}
}

// Run starts inv, answers its prompt with inv.Input after the grace
// period, and waits up to inv.Timeout for it to exit. A child that is
// still running after the timeout, or when ctx is cancelled, is killed
// and reported with inv.DefaultExitCode.
//
// A non-nil error means the invocation itself failed (pipes, spawn,
// wait, kill). A child that ran and exited non-zero is not an error; its
// code is in Outcome.ExitCode.
func (r *Runner) Run(ctx context.Context, inv Invocation) (out Outcome, err error) {
	inv = inv.withDefaults()
	out = Outcome{
		RunID:    uuid.New().String(),
		Step:     inv.Step,
		ExitCode: inv.DefaultExitCode,
	}
	start := time.Now()

	for _, o := range r.observers {
		o.InvocationStarted(inv.Step)
	}
	defer func() {
		out.Duration = time.Since(start)
		for _, o := range r.observers {
			o.InvocationFinished(out, err)
		}
	}()

	handles := newHandleSet(r.pipe)
	output := logging.NewOutputHandler(inv.Step, out.RunID, r.logger, r.verbose)
	var drainWg sync.WaitGroup
	defer func() {
		closed, relErr := handles.releaseAll()
		drainWg.Wait()
		out.Output = output.RecentLines(logging.MaxBufferedLines)
		if relErr != nil {
			r.logger.Error("handle_release_failed",
				"step", inv.Step,
				"run_id", out.RunID,
				"error", relErr,
			)
			if err == nil {
				err = relErr
			}
		}
		r.logger.Debug("handles_released",
			"step", inv.Step,
			"run_id", out.RunID,
			"closed", closed,
		)
	}()

	stdin, err := handles.newPipe("stdin", true)
	if err != nil {
		out.Completion = CompletionSpawnFailed
		return out, err
	}
	stdout, err := handles.newPipe("stdout", false)
	if err != nil {
		out.Completion = CompletionSpawnFailed
		return out, err
	}
	stderr, err := handles.newPipe("stderr", false)
	if err != nil {
		out.Completion = CompletionSpawnFailed
		return out, err
	}

	cmd := &exec.Cmd{
		Path:   inv.Path,
		Args:   inv.argv(),
		Stdin:  stdin.child.f,
		Stdout: stdout.child.f,
		Stderr: stderr.child.f,
	}
	configureCommand(cmd, inv)

	if err := cmd.Start(); err != nil {
		out.Completion = CompletionSpawnFailed
		r.logger.Error("process_spawn_failed",
			"step", inv.Step,
			"run_id", out.RunID,
			"path", inv.Path,
			"error", err,
		)
		return out, fmt.Errorf("start %s: %w", inv.Path, err)
	}

	// The child has its own copies now. Dropping ours lets the readers see
	// EOF as soon as the child (and anything it spawned) exits.
	for _, h := range []*handle{stdin.child, stdout.child, stderr.child} {
		if err := h.release(); err != nil {
			r.logger.Warn("handle_release_failed", "step", inv.Step, "run_id", out.RunID, "error", err)
		}
	}

	pid := cmd.Process.Pid
	r.logger.Info("process_started",
		"step", inv.Step,
		"run_id", out.RunID,
		"pid", pid,
		"command", inv.String(),
	)

	drainWg.Add(2)
	go func() {
		defer drainWg.Done()
		output.HandleReader("stdout", stdout.parent.f)
	}()
	go func() {
		defer drainWg.Done()
		output.HandleReader("stderr", stderr.parent.f)
	}()

	// The waiter owns the process handle from here on: Wait releases it.
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	// The answers are written from their own goroutine so a child that
	// never reads stdin cannot hold off the hard timeout.
	var inputDone <-chan error
	waitErr, exited, cancelled := waitFor(ctx, done, inv.GracePeriod)
	if !exited && !cancelled && len(inv.Input) > 0 {
		inputDone = r.startInput(stdin.parent.f, inv.Input)
	}
	if !exited && !cancelled {
		waitErr, exited, cancelled = waitFor(ctx, done, inv.Timeout)
	}

	if !exited {
		if err := terminate(cmd.Process, inv.DefaultExitCode); err != nil {
			r.logger.Error("process_kill_failed",
				"step", inv.Step,
				"run_id", out.RunID,
				"pid", pid,
				"error", err,
			)
			out.Completion = CompletionKilled
			out.InputErr = r.finishInput(inv, out.RunID, stdin.parent, inputDone)
			return out, fmt.Errorf("terminate %s (pid %d): %w", inv.Path, pid, err)
		}
		<-done
		out.InputErr = r.finishInput(inv, out.RunID, stdin.parent, inputDone)
		r.awaitDrain(&drainWg, inv.Step)

		out.Completion = CompletionKilled
		out.ExitCode = inv.DefaultExitCode
		r.logger.Warn("process_killed",
			"step", inv.Step,
			"run_id", out.RunID,
			"pid", pid,
			"timeout", inv.Timeout.String(),
			"exit_code", out.ExitCode,
			"cancelled", cancelled,
		)
		if cancelled {
			return out, fmt.Errorf("%s cancelled: %w", inv.Step, ctx.Err())
		}
		return out, nil
	}

	out.InputErr = r.finishInput(inv, out.RunID, stdin.parent, inputDone)
	r.awaitDrain(&drainWg, inv.Step)

	code, err := exitCode(waitErr)
	if err != nil {
		out.Completion = CompletionExited
		return out, fmt.Errorf("wait %s: %w", inv.Path, err)
	}
	out.Completion = CompletionExited
	out.ExitCode = code

	attrs := []any{
		"step", inv.Step,
		"run_id", out.RunID,
		"pid", pid,
		"exit_code", code,
	}
	if code != 0 {
		if errs := output.CountErrors(); len(errs) > 0 {
			attrs = append(attrs, "output_errors", errs)
		}
	}
	r.logger.Info("process_exited", attrs...)
	return out, nil
}

// waitFor blocks until the child exits, d elapses, or ctx is done.
func waitFor(ctx context.Context, done <-chan error, d time.Duration) (waitErr error, exited, cancelled bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case waitErr = <-done:
		return waitErr, true, false
	case <-timer.C:
		return nil, false, false
	case <-ctx.Done():
		return nil, false, true
	}
}

// startInput writes input to the child's stdin in the background. The
// returned channel receives the write result.
func (r *Runner) startInput(w io.Writer, input []byte) <-chan error {
	result := make(chan error, 1)
	go func() {
		result <- r.writeInput(w, input)
	}()
	return result
}

// finishInput closes the parent end of stdin, which fails a write still
// blocked on a full pipe, and collects the write result. pending is nil
// when no input was sent.
func (r *Runner) finishInput(inv Invocation, runID string, stdin *handle, pending <-chan error) error {
	if err := stdin.release(); err != nil {
		r.logger.Warn("handle_release_failed", "step", inv.Step, "run_id", runID, "error", err)
	}
	if pending == nil {
		return nil
	}

	var err error
	select {
	case err = <-pending:
	case <-time.After(drainTimeout):
		err = ErrInputIncomplete
	}

	if err != nil {
		r.logger.Warn("scripted_input_failed",
			"step", inv.Step,
			"run_id", runID,
			"error", err,
		)
		return err
	}
	r.logger.Debug("scripted_input_written",
		"step", inv.Step,
		"run_id", runID,
		"bytes", len(inv.Input),
	)
	return nil
}

// writeInput writes the scripted answers in full from a heap buffer.
func (r *Runner) writeInput(w io.Writer, input []byte) error {
	buf, err := r.heap.Alloc(len(input), false)
	if err != nil {
		return fmt.Errorf("write scripted input: %w", err)
	}
	defer r.heap.Free(buf)
	copy(buf, input)

	n, err := w.Write(buf)
	if err != nil {
		return fmt.Errorf("write scripted input: %w", err)
	}
	if n != len(input) {
		return fmt.Errorf("write scripted input: %w", io.ErrShortWrite)
	}
	return nil
}

// awaitDrain gives the output readers a bounded time to reach EOF.
func (r *Runner) awaitDrain(wg *sync.WaitGroup, step string) {
	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(drainTimeout):
		r.logger.Debug("output_drain_timeout",
			"step", step,
			"timeout", drainTimeout.String(),
		)
	}
}

// exitCode extracts the child's exit status from a Wait error. Errors
// that do not carry an exit status are returned.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitStatus(exitErr), nil
	}
	return 0, err
}
