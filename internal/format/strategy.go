// Package format reformats a removable drive with the filesystem the host
// OS can boot from, using the system's format and convert tools.
package format

import (
	"os"
	"strings"

	"github.com/randomizedcoder/usbprep/internal/osversion"
)

// Strategy selects the command sequence used to format a drive.
type Strategy int

const (
	// Modern formats straight to NTFS (Vista and later).
	Modern Strategy = iota

	// Legacy formats to FAT32 and then converts the volume to NTFS in
	// place, for hosts whose format tool cannot create NTFS on removable
	// media.
	Legacy
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case Modern:
		return "modern"
	case Legacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Select picks the strategy for a host version.
func Select(v osversion.Version) Strategy {
	if v.Legacy() {
		return Legacy
	}
	return Modern
}

// formatAnswers confirms the "Proceed with Format (Y/N)?" prompt and
// declines any follow-up question.
var formatAnswers = []byte("Y\nN\n")

// step is one command of a strategy.
type step struct {
	name  string // "format" or "convert"
	args  string // command line after the shell path
	input []byte
}

// consoleLabel pads step names to a common width for the failure line.
func consoleLabel(step string) string {
	switch step {
	case "format":
		return "FORMAT "
	case "convert":
		return "CONVERT"
	default:
		return strings.ToUpper(step)
	}
}

// steps returns the commands for a validated drive letter ("E:").
func (s Strategy) steps(letter string) []step {
	if s == Legacy {
		return []step{
			{
				name:  "format",
				args:  "/C format " + letter + ` /FS:FAT32 /V:"" /Q /X`,
				input: formatAnswers,
			},
			{
				name: "convert",
				args: "/C echo N | convert " + letter + " /FS:NTFS /X",
			},
		}
	}
	return []step{
		{
			name:  "format",
			args:  "/C format " + letter + ` /FS:NTFS /V:"" /Q /X`,
			input: formatAnswers,
		},
	}
}

// DefaultWindowsDir is used when WINDIR is not set.
const DefaultWindowsDir = `C:\Windows`

// ShellPath returns the command interpreter under a Windows directory.
func ShellPath(windir string) string {
	if windir == "" {
		windir = DefaultWindowsDir
	}
	return windir + `\system32\cmd.exe`
}

// DefaultShell locates cmd.exe from the WINDIR environment variable.
func DefaultShell() string {
	return ShellPath(os.Getenv("WINDIR"))
}
