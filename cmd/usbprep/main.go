// Package main is the entry point for the usbprep CLI.
//
// usbprep prepares a removable USB drive to boot: it formats the drive for
// the host Windows version, marks the first partition active and installs
// a boot sector.
package main

import (
	"errors"
	"os"

	"github.com/randomizedcoder/usbprep/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var exitErr *cmd.ExitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
