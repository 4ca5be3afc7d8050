// Package config provides configuration management for usbprep.
package config

import "time"

// Config holds all configuration options.
type Config struct {
	// Logging
	LogFormat string `yaml:"log_format"` // text, json
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	Verbose   bool   `yaml:"verbose"`

	// Supervised commands
	Shell           string        `yaml:"shell"`    // empty = %WINDIR%\system32\cmd.exe
	Bootsect        string        `yaml:"bootsect"` // empty = next to the executable
	GracePeriod     time.Duration `yaml:"grace_period"`
	Timeout         time.Duration `yaml:"timeout"`
	DefaultExitCode int           `yaml:"default_exit_code"`

	// Workflow
	SkipFormat     bool  `yaml:"skip_format"`
	SkipBootloader bool  `yaml:"skip_bootloader"`
	Force          bool  `yaml:"force"`          // allow non-removable drives
	SkipPreflight  bool  `yaml:"skip_preflight"` // skip environment checks
	OSMajor        int   `yaml:"os_major"`       // 0 = detect
	HeapLimit      int64 `yaml:"heap_limit"`     // bytes, 0 = unlimited

	// Observability
	MetricsAddr string `yaml:"metrics_addr"` // empty = no server
	MetricsFile string `yaml:"metrics_file"` // empty = no textfile
	TUI         bool   `yaml:"tui"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Logging
		LogFormat: "text",
		LogLevel:  "info",

		// Supervised commands
		GracePeriod:     time.Second,
		Timeout:         300 * time.Second,
		DefaultExitCode: 99,

		// Workflow
		HeapLimit: 1 << 20,
	}
}
