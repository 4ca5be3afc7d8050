package prep

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/randomizedcoder/usbprep/internal/device"
	"github.com/randomizedcoder/usbprep/internal/process"
)

// BootsectStep is the step name of the boot sector invocation.
const BootsectStep = "bootsect"

// BootsectName is the boot sector tool's file name on this host.
func BootsectName() string {
	if runtime.GOOS == "windows" {
		return "bootsect.exe"
	}
	return "bootsect"
}

// bootsectTarget is the volume argument bootsect expects: the drive letter
// where there is one, the raw specifier otherwise.
func bootsectTarget(drive string) string {
	if letter, err := device.Letter(drive); err == nil {
		return letter
	}
	return drive
}

// bootsectInvocation builds `bootsect /nt60 X: /force /mbr`.
func (p *Preparer) bootsectInvocation(path, drive string) process.Invocation {
	target := bootsectTarget(drive)
	return process.Invocation{
		Step:            BootsectStep,
		Path:            path,
		Args:            []string{path, "/nt60", target, "/force", "/mbr"},
		CommandLine:     "/nt60 " + target + " /force /mbr",
		GracePeriod:     p.grace,
		Timeout:         p.timeout,
		DefaultExitCode: p.defaultCode,
	}
}

// locateBootsect returns the boot sector tool to run for drive, searching
// the configured path and then the directory of the running executable.
// When formatting was skipped the drive keeps its files, so a tool in the
// drive's boot directory is used last. It is copied to a temporary file
// first so bootsect does not run from the volume it locks; cleanup removes
// the copy. An empty path means no tool was found.
func (p *Preparer) locateBootsect(drive string) (path string, cleanup func(), err error) {
	cleanup = func() {}

	if p.bootsect != "" {
		if isFile(p.bootsect) {
			return p.bootsect, cleanup, nil
		}
		return "", cleanup, nil
	}

	if exe, err := p.executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), BootsectName())
		if isFile(candidate) {
			return candidate, cleanup, nil
		}
	}

	// A freshly formatted drive is empty.
	if !p.skipFormat {
		return "", cleanup, nil
	}

	letter, err := device.Letter(drive)
	if err != nil {
		return "", cleanup, nil
	}
	onDrive := filepath.Join(p.driveRoot(letter), "boot", BootsectName())
	if !isFile(onDrive) {
		return "", cleanup, nil
	}

	tmp, err := copyToTemp(onDrive)
	if err != nil {
		return "", cleanup, fmt.Errorf("copy %s off the drive: %w", onDrive, err)
	}
	return tmp, func() { os.RemoveAll(filepath.Dir(tmp)) }, nil
}

// volumeRoot returns the root directory of a drive letter ("E:" -> `E:\`).
func volumeRoot(letter string) string {
	return letter + `\`
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// copyToTemp copies src into a new temporary directory, keeping its name.
func copyToTemp(src string) (string, error) {
	dir, err := os.MkdirTemp("", "usbprep-")
	if err != nil {
		return "", err
	}

	dst := filepath.Join(dir, filepath.Base(src))
	if err := copyFile(src, dst); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
