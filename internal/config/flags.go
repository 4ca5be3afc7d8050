package config

import (
	"github.com/spf13/pflag"
)

// Flags holds the values of the command-line flags. Only flags the user
// actually set override the config file.
type Flags struct {
	ConfigPath string
	values     Config
}

// flagBinding copies one flag's value into a Config.
type flagBinding func(dst, src *Config)

var bindings = map[string]flagBinding{
	"log-format":        func(d, s *Config) { d.LogFormat = s.LogFormat },
	"log-level":         func(d, s *Config) { d.LogLevel = s.LogLevel },
	"verbose":           func(d, s *Config) { d.Verbose = s.Verbose },
	"shell":             func(d, s *Config) { d.Shell = s.Shell },
	"bootsect":          func(d, s *Config) { d.Bootsect = s.Bootsect },
	"grace":             func(d, s *Config) { d.GracePeriod = s.GracePeriod },
	"timeout":           func(d, s *Config) { d.Timeout = s.Timeout },
	"default-exit-code": func(d, s *Config) { d.DefaultExitCode = s.DefaultExitCode },
	"skip-format":       func(d, s *Config) { d.SkipFormat = s.SkipFormat },
	"skip-bootloader":   func(d, s *Config) { d.SkipBootloader = s.SkipBootloader },
	"force":             func(d, s *Config) { d.Force = s.Force },
	"skip-preflight":    func(d, s *Config) { d.SkipPreflight = s.SkipPreflight },
	"os-major":          func(d, s *Config) { d.OSMajor = s.OSMajor },
	"heap-limit":        func(d, s *Config) { d.HeapLimit = s.HeapLimit },
	"metrics-addr":      func(d, s *Config) { d.MetricsAddr = s.MetricsAddr },
	"metrics-file":      func(d, s *Config) { d.MetricsFile = s.MetricsFile },
	"tui":               func(d, s *Config) { d.TUI = s.TUI },
}

// BindFlags registers every config flag on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}
	def := DefaultConfig()
	v := &f.values

	fs.StringVar(&f.ConfigPath, "config", "", "YAML config file")

	// Observability
	fs.StringVar(&v.LogFormat, "log-format", def.LogFormat, "Log format: text, json")
	fs.StringVar(&v.LogLevel, "log-level", def.LogLevel, "Log level: debug, info, warn, error")
	fs.BoolVarP(&v.Verbose, "verbose", "v", def.Verbose, "Log every line of command output")
	fs.StringVar(&v.MetricsAddr, "metrics-addr", def.MetricsAddr, "Serve Prometheus metrics on this address (e.g. 127.0.0.1:17091)")
	fs.StringVar(&v.MetricsFile, "metrics-file", def.MetricsFile, "Write metrics at exit to this node_exporter textfile")
	fs.BoolVar(&v.TUI, "tui", def.TUI, "Show a live progress dashboard")

	// Supervised commands
	fs.StringVar(&v.Shell, "shell", def.Shell, `Command interpreter (default %WINDIR%\system32\cmd.exe)`)
	fs.StringVar(&v.Bootsect, "bootsect", def.Bootsect, "Path to bootsect.exe (default: next to usbprep)")
	fs.DurationVar(&v.GracePeriod, "grace", def.GracePeriod, "Wait before answering a command's prompt")
	fs.DurationVar(&v.Timeout, "timeout", def.Timeout, "Kill a command still running after this long")
	fs.IntVar(&v.DefaultExitCode, "default-exit-code", def.DefaultExitCode, "Exit code reported for killed commands")

	// Workflow
	fs.BoolVar(&v.SkipFormat, "skip-format", def.SkipFormat, "Do not reformat the drive")
	fs.BoolVar(&v.SkipBootloader, "skip-bootloader", def.SkipBootloader, "Do not run bootsect")
	fs.BoolVar(&v.Force, "force", def.Force, "Allow drives that do not report as removable")
	fs.BoolVar(&v.SkipPreflight, "skip-preflight", def.SkipPreflight, "Skip environment checks")
	fs.IntVar(&v.OSMajor, "os-major", def.OSMajor, "Pretend the host Windows major version is N (0 = detect)")
	fs.Int64Var(&v.HeapLimit, "heap-limit", def.HeapLimit, "Cap on buffer memory in bytes (0 = unlimited)")

	return f
}

// Resolve builds the effective config: defaults, then the config file (if
// any), then every flag the user set on fs.
func (f *Flags) Resolve(fs *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()
	if f.ConfigPath != "" {
		loaded, err := Load(f.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fs.Visit(func(fl *pflag.Flag) {
		if bind, ok := bindings[fl.Name]; ok {
			bind(cfg, &f.values)
		}
	})
	return cfg, nil
}
