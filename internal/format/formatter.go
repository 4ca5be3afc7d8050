package format

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/randomizedcoder/usbprep/internal/device"
	"github.com/randomizedcoder/usbprep/internal/logging"
	"github.com/randomizedcoder/usbprep/internal/process"
)

// Runner runs one supervised command. *process.Runner implements it.
type Runner interface {
	Run(ctx context.Context, inv process.Invocation) (process.Outcome, error)
}

// Config holds configuration for creating a Formatter.
type Config struct {
	Runner   Runner
	Strategy Strategy
	Logger   *slog.Logger

	// Shell is the command interpreter. Defaults to DefaultShell().
	Shell string

	GracePeriod     time.Duration
	Timeout         time.Duration
	DefaultExitCode int

	// Console receives the failure summary line. Defaults to os.Stdout.
	Console io.Writer
}

// Formatter formats drives with a fixed strategy.
type Formatter struct {
	runner   Runner
	strategy Strategy
	logger   *slog.Logger
	shell    string
	console  io.Writer

	grace       time.Duration
	timeout     time.Duration
	defaultCode int
}

// New creates a Formatter.
func New(cfg Config) *Formatter {
	f := &Formatter{
		runner:      cfg.Runner,
		strategy:    cfg.Strategy,
		logger:      cfg.Logger,
		shell:       cfg.Shell,
		console:     cfg.Console,
		grace:       cfg.GracePeriod,
		timeout:     cfg.Timeout,
		defaultCode: cfg.DefaultExitCode,
	}
	if f.logger == nil {
		f.logger = logging.Discard()
	}
	if f.shell == "" {
		f.shell = DefaultShell()
	}
	if f.console == nil {
		f.console = os.Stdout
	}
	if f.grace <= 0 {
		f.grace = process.DefaultGracePeriod
	}
	if f.timeout <= 0 {
		f.timeout = process.DefaultTimeout
	}
	if f.defaultCode == 0 {
		f.defaultCode = process.DefaultExitCode
	}
	return f
}

// Strategy returns the strategy the Formatter was built with.
func (f *Formatter) Strategy() Strategy {
	return f.strategy
}

// Commands returns the invocations Format would run for drive, in order.
func (f *Formatter) Commands(drive string) ([]process.Invocation, error) {
	letter, err := device.Letter(drive)
	if err != nil {
		return nil, err
	}

	steps := f.strategy.steps(letter)
	invs := make([]process.Invocation, 0, len(steps))
	for _, s := range steps {
		invs = append(invs, process.Invocation{
			Step:            s.name,
			Path:            f.shell,
			Args:            append([]string{f.shell}, strings.Fields(s.args)...),
			CommandLine:     s.args,
			Input:           s.input,
			GracePeriod:     f.grace,
			Timeout:         f.timeout,
			DefaultExitCode: f.defaultCode,
		})
	}
	return invs, nil
}

// Format runs the strategy's commands against drive. The first failing
// step stops the sequence; its failure is printed to the console and
// returned as a *StepError. The outcomes of every step that ran are
// returned.
func (f *Formatter) Format(ctx context.Context, drive string) ([]process.Outcome, error) {
	invs, err := f.Commands(drive)
	if err != nil {
		return nil, err
	}

	f.logger.Info("format_started",
		"drive", drive,
		"strategy", f.strategy.String(),
		"steps", len(invs),
	)

	outcomes := make([]process.Outcome, 0, len(invs))
	for _, inv := range invs {
		out, runErr := f.runner.Run(ctx, inv)
		outcomes = append(outcomes, out)

		if runErr == nil && out.Success() {
			f.logger.Info("format_step_complete",
				"drive", drive,
				"step", inv.Step,
				"duration", out.Duration.String(),
			)
			continue
		}

		stepErr := &StepError{
			Step:       inv.Step,
			Drive:      drive,
			ExitCode:   out.ExitCode,
			Completion: out.Completion,
			Duration:   out.Duration,
			Err:        runErr,
		}
		// The console line reports the step's time limit, not its run time.
		fmt.Fprintf(f.console, "\n\n%s - Exit Code returned (%d)  Invoke Command returned (%d)  Duration was (%d)\n\n",
			consoleLabel(inv.Step), stepErr.ExitCode, stepErr.InvokeStatus(), int(f.timeout.Seconds()))
		f.logger.Error("format_step_failed",
			"drive", drive,
			"step", inv.Step,
			"exit_code", out.ExitCode,
			"completion", out.Completion.String(),
			"duration", out.Duration.String(),
			"error", stepErr,
		)
		return outcomes, stepErr
	}

	f.logger.Info("format_complete", "drive", drive, "strategy", f.strategy.String())
	return outcomes, nil
}
