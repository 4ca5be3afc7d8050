//go:build windows

package process

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// configureCommand hides the console window and, when the invocation
// carries a raw command line, passes it through without argv escaping.
func configureCommand(cmd *exec.Cmd, inv Invocation) {
	attr := &syscall.SysProcAttr{
		HideWindow: true,
	}
	if inv.CommandLine != "" {
		attr.CmdLine = syscall.EscapeArg(inv.Path) + " " + inv.CommandLine
	}
	cmd.SysProcAttr = attr
}

// terminate ends the child with the given exit code.
func terminate(p *os.Process, code int) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(p.Pid))
	if err != nil {
		return fmt.Errorf("open process: %w", err)
	}
	defer windows.CloseHandle(h)

	if err := windows.TerminateProcess(h, uint32(code)); err != nil {
		return fmt.Errorf("terminate process: %w", err)
	}
	return nil
}

func exitStatus(exitErr *exec.ExitError) int {
	return exitErr.ExitCode()
}
