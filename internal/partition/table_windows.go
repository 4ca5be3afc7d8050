//go:build windows

package partition

import (
	"os"

	"golang.org/x/sys/windows"

	"github.com/randomizedcoder/usbprep/internal/device"
)

const (
	ioctlDiskGetDriveLayoutEx = 0x00070050
	ioctlDiskSetDriveLayoutEx = 0x0007C054
)

// DefaultLayout is the partition table format used on this host.
var DefaultLayout = WindowsLayout

// ioctlTable exchanges the drive layout with the disk driver.
type ioctlTable struct {
	f *os.File
}

// OpenTable opens the volume behind a drive letter.
func OpenTable(drive string) (Table, error) {
	f, err := device.Open(drive)
	if err != nil {
		return nil, err
	}
	return &ioctlTable{f: f}, nil
}

func (t *ioctlTable) ReadLayout(buf []byte) (int, error) {
	var returned uint32
	err := windows.DeviceIoControl(
		windows.Handle(t.f.Fd()),
		ioctlDiskGetDriveLayoutEx,
		nil, 0,
		&buf[0], uint32(len(buf)),
		&returned,
		nil,
	)
	if err != nil {
		return int(returned), err
	}
	return int(returned), nil
}

func (t *ioctlTable) WriteLayout(buf []byte) error {
	var returned uint32
	return windows.DeviceIoControl(
		windows.Handle(t.f.Fd()),
		ioctlDiskSetDriveLayoutEx,
		&buf[0], uint32(len(buf)),
		nil, 0,
		&returned,
		nil,
	)
}

func (t *ioctlTable) Close() error {
	return t.f.Close()
}
