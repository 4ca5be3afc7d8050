// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"io"
	"os"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name    string // Name of the check
	Passed  bool   // Whether the check passed
	Warning bool   // True if it's a warning (non-fatal)
	Message string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// Options selects what RunAll checks.
type Options struct {
	// Shell is the command interpreter format runs through. Empty skips
	// the check (activate-only runs).
	Shell string

	// Bootsect is the boot sector tool. Empty skips the check.
	Bootsect string

	// Drives are checked for removable media.
	Drives []string

	// Force downgrades a non-removable drive to a warning.
	Force bool
}

// probes are the host queries the checks use. Replaced in tests.
type probes struct {
	elevated  func() (bool, error)
	removable func(drive string) (bool, error)
}

var hostProbes = probes{
	elevated:  isElevated,
	removable: isRemovable,
}

// RunAll executes all preflight checks.
func RunAll(opts Options) *Result {
	return runAll(opts, hostProbes)
}

func runAll(opts Options, p probes) *Result {
	result := &Result{
		Checks: make([]Check, 0, 3+len(opts.Drives)),
		Passed: true,
	}
	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	add(checkPrivileges(p.elevated))

	if opts.Shell != "" {
		add(checkExecutable("shell", opts.Shell, false))
	}
	if opts.Bootsect != "" {
		// A missing bootsect only skips the bootloader step.
		add(checkExecutable("bootsect", opts.Bootsect, true))
	}
	for _, drive := range opts.Drives {
		add(checkRemovable(drive, opts.Force, p.removable))
	}

	return result
}

// checkPrivileges verifies the process can write raw devices.
func checkPrivileges(elevated func() (bool, error)) Check {
	ok, err := elevated()
	if err != nil {
		return Check{
			Name:    "privileges",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to check: %v", err),
		}
	}
	if !ok {
		return Check{
			Name:    "privileges",
			Passed:  false,
			Message: "not running elevated; raw disk access will be denied",
		}
	}
	return Check{
		Name:    "privileges",
		Passed:  true,
		Message: "elevated",
	}
}

// checkExecutable verifies a tool exists and is a regular file.
func checkExecutable(name, path string, optional bool) Check {
	info, err := os.Stat(path)
	if err == nil && info.Mode().IsRegular() {
		return Check{
			Name:    name,
			Passed:  true,
			Message: "found at " + path,
		}
	}

	msg := fmt.Sprintf("not found at %s", path)
	if err == nil {
		msg = fmt.Sprintf("%s is not a regular file", path)
	}
	if optional {
		return Check{
			Name:    name,
			Passed:  true,
			Warning: true,
			Message: msg + " (step will be skipped)",
		}
	}
	return Check{
		Name:    name,
		Passed:  false,
		Message: msg,
	}
}

// checkRemovable verifies a drive reports removable media.
func checkRemovable(drive string, force bool, removable func(string) (bool, error)) Check {
	name := "removable " + drive

	ok, err := removable(drive)
	switch {
	case err != nil:
		return Check{
			Name:    name,
			Passed:  force,
			Warning: force,
			Message: fmt.Sprintf("unable to check: %v", err),
		}
	case ok:
		return Check{
			Name:    name,
			Passed:  true,
			Message: "removable media",
		}
	case force:
		return Check{
			Name:    name,
			Passed:  true,
			Warning: true,
			Message: "not removable (allowed by --force)",
		}
	default:
		return Check{
			Name:    name,
			Passed:  false,
			Message: "not removable",
		}
	}
}

// PrintResults prints the preflight check results.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch {
	case name == "privileges":
		return "run from an elevated (Administrator / root) prompt"
	case name == "shell":
		return "set WINDIR or pass --shell"
	case len(name) > len("removable ") && name[:len("removable ")] == "removable ":
		return "check the drive letter, or pass --force to use a fixed disk"
	default:
		return "see documentation"
	}
}
