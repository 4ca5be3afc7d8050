// Package prep runs the whole preparation workflow for a drive: format,
// partition activation and boot sector installation.
package prep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/randomizedcoder/usbprep/internal/format"
	"github.com/randomizedcoder/usbprep/internal/logging"
	"github.com/randomizedcoder/usbprep/internal/partition"
	"github.com/randomizedcoder/usbprep/internal/process"
	"github.com/randomizedcoder/usbprep/internal/stats"
)

// Formatter formats one drive. *format.Formatter implements it.
type Formatter interface {
	Format(ctx context.Context, drive string) ([]process.Outcome, error)
}

// Activator marks a drive's first partition bootable.
// *partition.Activator implements it.
type Activator interface {
	Activate(drive string) (partition.Result, error)
}

// Metrics receives per-drive results. *metrics.Collector implements it.
type Metrics interface {
	RecordDrive(status string)
	RecordActivation(changed bool)
}

// Config holds configuration for creating a Preparer.
type Config struct {
	Formatter Formatter
	Activator Activator

	// Runner runs the boot sector tool.
	Runner format.Runner

	Logger    *slog.Logger
	Stats     *stats.Recorder
	Metrics   Metrics
	Callbacks Callbacks

	SkipFormat     bool
	SkipBootloader bool

	// Bootsect is the boot sector tool. Empty searches next to the
	// executable and on the drive itself.
	Bootsect string

	GracePeriod     time.Duration
	Timeout         time.Duration
	DefaultExitCode int
}

// Preparer prepares drives one at a time.
type Preparer struct {
	formatter Formatter
	activator Activator
	runner    format.Runner
	logger    *slog.Logger
	stats     *stats.Recorder
	metrics   Metrics
	callbacks Callbacks

	skipFormat     bool
	skipBootloader bool
	bootsect       string

	grace       time.Duration
	timeout     time.Duration
	defaultCode int

	executable func() (string, error)
	driveRoot  func(letter string) string
}

// New creates a Preparer.
func New(cfg Config) *Preparer {
	p := &Preparer{
		formatter:      cfg.Formatter,
		activator:      cfg.Activator,
		runner:         cfg.Runner,
		logger:         cfg.Logger,
		stats:          cfg.Stats,
		metrics:        cfg.Metrics,
		callbacks:      cfg.Callbacks,
		skipFormat:     cfg.SkipFormat,
		skipBootloader: cfg.SkipBootloader,
		bootsect:       cfg.Bootsect,
		grace:          cfg.GracePeriod,
		timeout:        cfg.Timeout,
		defaultCode:    cfg.DefaultExitCode,
		executable:     os.Executable,
		driveRoot:      volumeRoot,
	}
	if p.logger == nil {
		p.logger = logging.Discard()
	}
	if p.grace <= 0 {
		p.grace = process.DefaultGracePeriod
	}
	if p.timeout <= 0 {
		p.timeout = process.DefaultTimeout
	}
	if p.defaultCode == 0 {
		p.defaultCode = process.DefaultExitCode
	}
	return p
}

// PrepareAll prepares each drive in turn. A failed drive does not stop the
// others; cancellation does. The failures are joined.
func (p *Preparer) PrepareAll(ctx context.Context, drives []string) error {
	var errs []error
	for _, drive := range drives {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("%s: not started: %w", drive, err))
			continue
		}
		if err := p.Prepare(ctx, drive); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Prepare runs the workflow against one drive.
func (p *Preparer) Prepare(ctx context.Context, drive string) (err error) {
	start := time.Now()
	p.logger.Info("prepare_started", "drive", drive)

	defer func() {
		status := StatusComplete
		if err != nil {
			status = StatusFailed
			p.logger.Error("prepare_failed", "drive", drive, "error", err)
		} else {
			p.logger.Info("prepare_complete", "drive", drive, "duration", time.Since(start).String())
		}
		p.finish(drive, status, time.Since(start), err)
	}()

	if p.skipFormat {
		p.logger.Info("format_skipped", "drive", drive)
	} else {
		p.setStatus(drive, StatusFormatting, nil)
		if _, err := p.formatter.Format(ctx, drive); err != nil {
			return fmt.Errorf("unable to format drive %s: %w", drive, err)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", drive, err)
		}
	}

	p.setStatus(drive, StatusActivating, nil)
	res, err := p.activator.Activate(drive)
	if err != nil {
		return fmt.Errorf("unable to set active partition on %s: %w", drive, err)
	}
	if p.metrics != nil {
		p.metrics.RecordActivation(res.Changed)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", drive, err)
	}

	if p.skipBootloader {
		p.logger.Info("bootloader_skipped", "drive", drive)
		return nil
	}
	return p.installBootloader(ctx, drive)
}

// installBootloader runs the boot sector tool if one can be found.
func (p *Preparer) installBootloader(ctx context.Context, drive string) error {
	path, cleanup, err := p.locateBootsect(drive)
	if err != nil {
		return fmt.Errorf("bootloader could not be installed on %s: %w", drive, err)
	}
	defer cleanup()

	if path == "" {
		p.logger.Warn("bootloader_not_found", "drive", drive, "configured", p.bootsect)
		return nil
	}

	p.setStatus(drive, StatusInstallingBootloader, nil)
	inv := p.bootsectInvocation(path, drive)
	out, runErr := p.runner.Run(ctx, inv)
	if runErr == nil && out.Success() {
		p.logger.Info("bootloader_installed", "drive", drive, "bootsect", path)
		return nil
	}

	return fmt.Errorf("bootloader could not be installed: %w", &format.StepError{
		Step:       inv.Step,
		Drive:      drive,
		ExitCode:   out.ExitCode,
		Completion: out.Completion,
		Duration:   out.Duration,
		Err:        runErr,
	})
}

func (p *Preparer) setStatus(drive string, status Status, err error) {
	p.logger.Debug("drive_status", "drive", drive, "status", status.String())
	if p.callbacks.OnStatus != nil {
		p.callbacks.OnStatus(Update{
			Drive:  drive,
			Status: status,
			At:     time.Now(),
			Err:    err,
		})
	}
}

func (p *Preparer) finish(drive string, status Status, d time.Duration, err error) {
	if p.stats != nil {
		p.stats.RecordDrive(stats.DriveResult{
			Drive:    drive,
			Status:   status.String(),
			Duration: d,
			Err:      err,
		})
	}
	if p.metrics != nil {
		p.metrics.RecordDrive(status.String())
	}
	p.setStatus(drive, status, err)
}
