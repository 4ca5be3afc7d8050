package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"time"

	"github.com/randomizedcoder/usbprep/internal/logging"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// maxTimeout bounds how long a single command may run.
const maxTimeout = 2 * time.Hour

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	// Log format must be valid
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'text' or 'json' (got %q)", cfg.LogFormat),
		})
	}

	if !logging.ValidLevel(cfg.LogLevel) {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error (got %q)", cfg.LogLevel),
		})
	}

	// Grace period must be positive and shorter than the timeout
	if cfg.GracePeriod <= 0 {
		errs = append(errs, ValidationError{
			Field:   "grace_period",
			Message: "must be positive",
		})
	}

	if cfg.Timeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "timeout",
			Message: "must be positive",
		})
	} else if cfg.Timeout > maxTimeout {
		errs = append(errs, ValidationError{
			Field:   "timeout",
			Message: fmt.Sprintf("must be at most %v (got %v)", maxTimeout, cfg.Timeout),
		})
	}

	if cfg.GracePeriod > 0 && cfg.Timeout > 0 && cfg.GracePeriod >= cfg.Timeout {
		errs = append(errs, ValidationError{
			Field:   "grace_period",
			Message: fmt.Sprintf("must be shorter than timeout (%v >= %v)", cfg.GracePeriod, cfg.Timeout),
		})
	}

	// Exit codes above 255 are truncated on Unix hosts
	if cfg.DefaultExitCode < 1 || cfg.DefaultExitCode > 255 {
		errs = append(errs, ValidationError{
			Field:   "default_exit_code",
			Message: fmt.Sprintf("must be between 1 and 255 (got %d)", cfg.DefaultExitCode),
		})
	}

	if cfg.OSMajor < 0 {
		errs = append(errs, ValidationError{
			Field:   "os_major",
			Message: "must not be negative",
		})
	}

	if cfg.HeapLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "heap_limit",
			Message: "must not be negative",
		})
	}

	if cfg.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.MetricsAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "metrics_addr",
				Message: fmt.Sprintf("must be host:port (%v)", err),
			})
		}
	}

	if cfg.MetricsFile != "" && filepath.Ext(cfg.MetricsFile) != ".prom" {
		errs = append(errs, ValidationError{
			Field:   "metrics_file",
			Message: "must end in .prom for the node_exporter textfile collector",
		})
	}

	// Return combined errors
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
