// Package cmd implements the CLI commands for usbprep.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/usbprep/internal/config"
	"github.com/randomizedcoder/usbprep/internal/logging"
	"github.com/randomizedcoder/usbprep/internal/orchestrator"
)

// Version is set at build time via ldflags:
//
//	go build -ldflags "-X github.com/randomizedcoder/usbprep/internal/cmd.Version=1.0.0" ./cmd/usbprep
var Version = "dev"

// app holds state shared by the subcommands of one root command.
type app struct {
	flags  *config.Flags
	cfg    *config.Config
	logger *slog.Logger

	// newOrchestrator is replaced in tests.
	newOrchestrator func(cfg *config.Config, logger *slog.Logger, opts orchestrator.Options) (*orchestrator.Orchestrator, error)
}

// NewRootCommand builds the usbprep command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{newOrchestrator: orchestrator.New})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "usbprep",
		Short: "Prepare a USB drive to boot",
		Long: `usbprep reformats a removable drive for the host Windows version,
marks its first partition active, and installs a boot sector with bootsect.

Format tools run under supervision: their prompts are answered after a short
grace period and they are killed if they run past the timeout.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	a.flags = config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newPrepareCommand(a),
		newFormatCommand(a),
		newActivateCommand(a),
		newRunCommand(a),
		newPrintCmdCommand(a),
		newVersionCommand(a),
	)
	return root
}

// Execute runs the root command and returns any error. Errors are
// printed here; an ExitCodeError without a message prints nothing.
func Execute() error {
	root := NewRootCommand()
	err := root.ExecuteContext(context.Background())
	if err != nil {
		var exitErr *ExitCodeError
		if !errors.As(err, &exitErr) || exitErr.Err != nil {
			fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		}
	}
	return err
}

// setup resolves the config and logger before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := a.flags.Resolve(cmd.Flags())
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	a.cfg = cfg

	// The dashboard owns the terminal; logs would tear it.
	if cfg.TUI {
		a.logger = logging.NewLoggerWithWriter(io.Discard, "json", cfg.LogLevel)
	} else {
		a.logger = logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	}
	logging.SetDefault(a.logger)
	return nil
}

// startOrchestrator builds the orchestrator for a command and starts metrics.
func (a *app) startOrchestrator(cmd *cobra.Command) (*orchestrator.Orchestrator, error) {
	o, err := a.newOrchestrator(a.cfg, a.logger, orchestratorOptions(cmd))
	if err != nil {
		return nil, err
	}
	if err := o.Start(); err != nil {
		return nil, err
	}
	return o, nil
}

func orchestratorOptions(cmd *cobra.Command) orchestrator.Options {
	return orchestrator.Options{
		Version: Version,
		Stdout:  cmd.OutOrStdout(),
		Stderr:  cmd.ErrOrStderr(),
	}
}

// finish closes o, keeping the command's error if there is one.
func (a *app) finish(o *orchestrator.Orchestrator, err error) error {
	if cerr := o.Close(); cerr != nil {
		a.logger.Warn("close_failed", "error", cerr)
		if err == nil {
			err = cerr
		}
	}
	return err
}
