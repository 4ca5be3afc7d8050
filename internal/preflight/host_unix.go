//go:build !windows

package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/randomizedcoder/usbprep/internal/device"
)

func isElevated() (bool, error) {
	return os.Geteuid() == 0, nil
}

// isRemovable reads the kernel's removable flag for a block device.
func isRemovable(drive string) (bool, error) {
	path, err := device.Path(drive)
	if err != nil {
		return false, err
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(filepath.Join("/sys/block", filepath.Base(resolved), "removable"))
	if err != nil {
		return false, fmt.Errorf("no removable flag for %s: %w", resolved, err)
	}
	return strings.TrimSpace(string(data)) == "1", nil
}
