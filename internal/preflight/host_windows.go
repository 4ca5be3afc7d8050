//go:build windows

package preflight

import (
	"golang.org/x/sys/windows"

	"github.com/randomizedcoder/usbprep/internal/device"
)

func isElevated() (bool, error) {
	return windows.GetCurrentProcessToken().IsElevated(), nil
}

func isRemovable(drive string) (bool, error) {
	letter, err := device.Letter(drive)
	if err != nil {
		return false, err
	}
	root, err := windows.UTF16PtrFromString(letter + `\`)
	if err != nil {
		return false, err
	}
	return windows.GetDriveType(root) == windows.DRIVE_REMOVABLE, nil
}
