// Package orchestrator wires the usbprep components together from a
// Config and runs the commands the CLI exposes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/randomizedcoder/usbprep/internal/config"
	"github.com/randomizedcoder/usbprep/internal/format"
	"github.com/randomizedcoder/usbprep/internal/heap"
	"github.com/randomizedcoder/usbprep/internal/metrics"
	"github.com/randomizedcoder/usbprep/internal/osversion"
	"github.com/randomizedcoder/usbprep/internal/partition"
	"github.com/randomizedcoder/usbprep/internal/preflight"
	"github.com/randomizedcoder/usbprep/internal/prep"
	"github.com/randomizedcoder/usbprep/internal/process"
	"github.com/randomizedcoder/usbprep/internal/stats"
	"github.com/randomizedcoder/usbprep/internal/tui"
)

// shutdownTimeout bounds the metrics server shutdown.
const shutdownTimeout = 10 * time.Second

// Options holds what New cannot take from the Config.
type Options struct {
	// Version is reported in usbprep_info.
	Version string

	// Stdout receives command output and the exit summary. Stderr
	// receives preflight results and the format failure line.
	Stdout io.Writer
	Stderr io.Writer

	// Host overrides OS detection.
	Host *osversion.Version

	// OpenTable overrides the partition table backend.
	OpenTable func(drive string) (partition.Table, error)

	// Preflight overrides the environment checks.
	Preflight func(preflight.Options) *preflight.Result
}

// Orchestrator coordinates all components for one usbprep command.
type Orchestrator struct {
	config *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer

	host     osversion.Version
	strategy format.Strategy

	registry      *prometheus.Registry
	metrics       *metrics.Collector
	metricsServer *metrics.Server
	stats         *stats.Recorder

	heap      *heap.Heap
	runner    *process.Runner
	formatter *format.Formatter
	activator *partition.Activator
	preflight func(preflight.Options) *preflight.Result

	startTime time.Time
}

// New creates an Orchestrator. The host OS version is detected unless
// the config or opts override it.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Orchestrator, error) {
	host, err := resolveHost(cfg, opts.Host)
	if err != nil {
		return nil, err
	}
	strategy := format.Select(host)

	o := &Orchestrator{
		config:    cfg,
		logger:    logger,
		stdout:    opts.Stdout,
		stderr:    opts.Stderr,
		host:      host,
		strategy:  strategy,
		registry:  prometheus.NewRegistry(),
		stats:     stats.NewRecorder(),
		preflight: opts.Preflight,
		startTime: time.Now(),
	}
	if o.stdout == nil {
		o.stdout = os.Stdout
	}
	if o.stderr == nil {
		o.stderr = os.Stderr
	}
	if o.preflight == nil {
		o.preflight = preflight.RunAll
	}

	o.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	o.metrics = metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
		Version:  opts.Version,
		Host:     host.String(),
		Strategy: strategy.String(),
	}, o.registry)
	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(cfg.MetricsAddr, o.registry, logger)
	}

	o.heap = heap.New(heap.Config{
		Limit: cfg.HeapLimit,
		Hook:  o.metrics.HeapHook(),
	})
	o.runner = process.New(process.Config{
		Logger:    logger,
		Observers: []process.Observer{o.metrics, o.stats},
		Heap:      o.heap,
		Verbose:   cfg.Verbose,
	})
	o.formatter = format.New(format.Config{
		Runner:          o.runner,
		Strategy:        strategy,
		Logger:          logger,
		Shell:           cfg.Shell,
		GracePeriod:     cfg.GracePeriod,
		Timeout:         cfg.Timeout,
		DefaultExitCode: cfg.DefaultExitCode,
		Console:         o.stderr,
	})
	o.activator = partition.NewActivator(partition.Config{
		Logger: logger,
		Heap:   o.heap,
		Open:   opts.OpenTable,
	})

	logger.Debug("orchestrator_ready",
		"host", host.String(),
		"strategy", strategy.String(),
		"metrics_addr", cfg.MetricsAddr,
	)
	return o, nil
}

// resolveHost picks the OS version: an explicit override, then the
// config's os_major, then detection.
func resolveHost(cfg *config.Config, override *osversion.Version) (osversion.Version, error) {
	if override != nil {
		return *override, nil
	}
	if cfg.OSMajor > 0 {
		return osversion.Override(cfg.OSMajor), nil
	}
	v, err := osversion.Detect()
	if err != nil {
		return osversion.Version{}, fmt.Errorf("detect OS version (use --os-major to override): %w", err)
	}
	return v, nil
}

// Start starts the metrics server, if one is configured.
func (o *Orchestrator) Start() error {
	if o.metricsServer == nil {
		return nil
	}
	if err := o.metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	o.metricsServer.SetReady(true)
	return nil
}

// Close stops the metrics server and writes the metrics textfile.
func (o *Orchestrator) Close() error {
	var errs []error

	if o.metricsServer != nil {
		o.metricsServer.SetReady(false)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := o.metricsServer.Shutdown(ctx); err != nil {
			o.logger.Warn("metrics_server_shutdown_error", "error", err)
			errs = append(errs, err)
		}
	}

	if o.config.MetricsFile != "" {
		if err := metrics.WriteTextfile(o.registry, o.config.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics file: %w", err))
		} else {
			o.logger.Info("metrics_file_written", "path", o.config.MetricsFile)
		}
	}
	return errors.Join(errs...)
}

// Strategy returns the format strategy selected for the host.
func (o *Orchestrator) Strategy() format.Strategy {
	return o.strategy
}

// Host returns the host OS version in use.
func (o *Orchestrator) Host() osversion.Version {
	return o.host
}

// Registry returns the metrics registry.
func (o *Orchestrator) Registry() *prometheus.Registry {
	return o.registry
}

// Stats returns the run's recorder.
func (o *Orchestrator) Stats() *stats.Recorder {
	return o.stats
}

// =============================================================================
// Commands
// =============================================================================

// Prepare runs the whole workflow against drives, one at a time. SIGINT
// and SIGTERM cancel the run; a command in flight is killed.
func (o *Orchestrator) Prepare(ctx context.Context, drives []string) error {
	if err := o.checkEnvironment(drives, !o.config.SkipFormat, !o.config.SkipBootloader); err != nil {
		return err
	}

	ctx, stop := signalContext(ctx, o.logger)
	defer stop()

	o.logger.Info("prepare_starting",
		"drives", len(drives),
		"strategy", o.strategy.String(),
		"skip_format", o.config.SkipFormat,
		"skip_bootloader", o.config.SkipBootloader,
	)

	if o.config.TUI {
		return o.prepareWithDashboard(ctx, drives)
	}
	return o.newPreparer(prep.Callbacks{}, false).PrepareAll(ctx, drives)
}

// Activate marks the first partition of drive bootable.
func (o *Orchestrator) Activate(ctx context.Context, drive string) error {
	if err := o.checkEnvironment([]string{drive}, false, false); err != nil {
		return err
	}
	return o.newPreparer(prep.Callbacks{}, true).Prepare(ctx, drive)
}

// Format formats drive with the host's strategy. The error is a
// *format.StepError when a step ran and failed.
func (o *Orchestrator) Format(ctx context.Context, drive string) error {
	if err := o.checkEnvironment([]string{drive}, true, false); err != nil {
		return err
	}

	ctx, stop := signalContext(ctx, o.logger)
	defer stop()

	start := time.Now()
	_, err := o.formatter.Format(ctx, drive)

	status := prep.StatusComplete
	if err != nil {
		status = prep.StatusFailed
	}
	o.stats.RecordDrive(stats.DriveResult{
		Drive:    drive,
		Status:   status.String(),
		Duration: time.Since(start),
		Err:      err,
	})
	o.metrics.RecordDrive(status.String())
	return err
}

// Exec runs an arbitrary command through the supervised runner.
func (o *Orchestrator) Exec(ctx context.Context, inv process.Invocation) (process.Outcome, error) {
	ctx, stop := signalContext(ctx, o.logger)
	defer stop()

	if inv.GracePeriod <= 0 {
		inv.GracePeriod = o.config.GracePeriod
	}
	if inv.Timeout <= 0 {
		inv.Timeout = o.config.Timeout
	}
	if inv.DefaultExitCode == 0 {
		inv.DefaultExitCode = o.config.DefaultExitCode
	}
	return o.runner.Run(ctx, inv)
}

// Commands returns the invocations formatting drive would run.
func (o *Orchestrator) Commands(drive string) ([]process.Invocation, error) {
	return o.formatter.Commands(drive)
}

// newPreparer builds a Preparer from the config. activateOnly skips the
// format and bootloader steps.
func (o *Orchestrator) newPreparer(cb prep.Callbacks, activateOnly bool) *prep.Preparer {
	return prep.New(prep.Config{
		Formatter:       o.formatter,
		Activator:       o.activator,
		Runner:          o.runner,
		Logger:          o.logger,
		Stats:           o.stats,
		Metrics:         o.metrics,
		Callbacks:       cb,
		SkipFormat:      o.config.SkipFormat || activateOnly,
		SkipBootloader:  o.config.SkipBootloader || activateOnly,
		Bootsect:        o.config.Bootsect,
		GracePeriod:     o.config.GracePeriod,
		Timeout:         o.config.Timeout,
		DefaultExitCode: o.config.DefaultExitCode,
	})
}

// prepareWithDashboard runs the drives in the background while the
// dashboard owns the terminal. Quitting the dashboard cancels the run.
func (o *Orchestrator) prepareWithDashboard(ctx context.Context, drives []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.New(tui.Config{
		Drives:      drives,
		Strategy:    o.strategy.String(),
		MetricsAddr: o.config.MetricsAddr,
		StatsSource: o.stats,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithOutput(o.stdout))

	done := make(chan error, 1)
	go func() {
		p := o.newPreparer(prep.Callbacks{
			OnStatus: func(u prep.Update) { tui.SendStatus(program, u) },
		}, false)
		err := p.PrepareAll(ctx, drives)
		tui.SendDone(program, err)
		done <- err
	}()

	final, err := program.Run()
	if err != nil {
		cancel()
		<-done
		return fmt.Errorf("dashboard: %w", err)
	}
	if m, ok := final.(tui.Model); ok && m.Interrupted() {
		o.logger.Info("dashboard_quit", "reason", "user")
		cancel()
	}
	return <-done
}

// checkEnvironment runs the preflight checks unless they are disabled.
func (o *Orchestrator) checkEnvironment(drives []string, needShell, wantBootsect bool) error {
	if o.config.SkipPreflight {
		return nil
	}

	opts := preflight.Options{
		Drives: drives,
		Force:  o.config.Force,
	}
	if needShell {
		opts.Shell = o.config.Shell
		if opts.Shell == "" {
			opts.Shell = format.DefaultShell()
		}
	}
	if wantBootsect {
		opts.Bootsect = o.config.Bootsect
	}

	result := o.preflight(opts)
	preflight.PrintResults(o.stderr, result)
	if !result.Passed {
		return fmt.Errorf("preflight checks failed (use --skip-preflight to override)")
	}
	return nil
}

// signalContext cancels ctx on SIGINT or SIGTERM.
func signalContext(ctx context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received_signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// =============================================================================
// Summary
// =============================================================================

// PrintExitSummary prints the run summary to stdout.
func (o *Orchestrator) PrintExitSummary() {
	fmt.Fprint(o.stdout, stats.FormatExitSummary(o.stats.Snapshot(), stats.SummaryConfig{
		Host:            o.host.String(),
		Strategy:        o.strategy.String(),
		DefaultExitCode: o.config.DefaultExitCode,
		MetricsAddr:     o.config.MetricsAddr,
		MetricsFile:     o.config.MetricsFile,
	}))
}
