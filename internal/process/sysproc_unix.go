//go:build !windows

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureCommand puts the child in its own process group so a kill
// reaches anything it spawned. CommandLine is a Windows concept and is
// ignored here.
func configureCommand(cmd *exec.Cmd, _ Invocation) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// terminate kills the child's process group. Unix cannot impose an exit
// code on a killed process; the caller reports code itself.
func terminate(p *os.Process, _ int) error {
	if pgid, err := unix.Getpgid(p.Pid); err == nil {
		if err := unix.Kill(-pgid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			return err
		}
		return nil
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// exitStatus maps a Wait error to an exit code. Signal deaths are reported
// as 128 + signal, the way shells do.
func exitStatus(exitErr *exec.ExitError) int {
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
		if status.Signaled() {
			return 128 + int(status.Signal())
		}
		return status.ExitStatus()
	}
	return exitErr.ExitCode()
}
