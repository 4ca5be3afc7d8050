//go:build !windows

package partition

import "github.com/randomizedcoder/usbprep/internal/device"

// DefaultLayout is the partition table format used on this host.
var DefaultLayout = MBRLayout

// OpenTable opens the MBR of a raw block device.
func OpenTable(drive string) (Table, error) {
	f, err := device.Open(drive)
	if err != nil {
		return nil, err
	}
	return NewSectorTable(f), nil
}
