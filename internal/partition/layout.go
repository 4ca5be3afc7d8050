// Package partition marks the first partition of a removable drive as the
// boot partition.
package partition

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrLayoutSize is returned when the device returns a partition table of
	// an unexpected size.
	ErrLayoutSize = errors.New("partition layout has unexpected size")

	// ErrNoSignature is returned when a master boot record lacks the 0x55AA
	// boot signature.
	ErrNoSignature = errors.New("missing MBR boot signature")

	// ErrNotMBR is returned for GPT disks, which have no boot indicator.
	ErrNotMBR = errors.New("disk does not use an MBR partition table")
)

// Layout describes where the boot flag of the first partition lives inside
// a partition table buffer.
type Layout struct {
	Name string

	// Size is the exact number of bytes read and written.
	Size int

	// BootOffset is the byte offset of the first entry's boot indicator.
	BootOffset int

	// BootValue is written at BootOffset to mark the partition active.
	BootValue byte

	// RewriteOffset is the byte offset of a flag asking the OS to rewrite
	// the entry, or -1 if the format has none.
	RewriteOffset int

	// Check validates a freshly read buffer. Nil means no check.
	Check func(buf []byte) error
}

// Drive layout structures returned by IOCTL_DISK_GET_DRIVE_LAYOUT_EX.
// DRIVE_LAYOUT_INFORMATION_EX embeds the first PARTITION_INFORMATION_EX.
const (
	driveLayoutHeaderSize = 48
	partitionInfoSize     = 144

	partitionStyleMBR = 0

	// Offsets inside PARTITION_INFORMATION_EX.
	rewritePartitionOffset = 28
	mbrBootIndicatorOffset = 33
)

// WindowsLayout is the drive layout buffer exchanged with the disk driver:
// the layout header plus four partition entries.
var WindowsLayout = Layout{
	Name:          "drive_layout_ex",
	Size:          driveLayoutHeaderSize + 4*partitionInfoSize,
	BootOffset:    driveLayoutHeaderSize + mbrBootIndicatorOffset,
	BootValue:     1,
	RewriteOffset: driveLayoutHeaderSize + rewritePartitionOffset,
	Check:         checkDriveLayout,
}

func checkDriveLayout(buf []byte) error {
	style := binary.LittleEndian.Uint32(buf[0:4])
	if style != partitionStyleMBR {
		return fmt.Errorf("%w: partition style %d", ErrNotMBR, style)
	}
	return nil
}

// Master boot record layout.
const (
	mbrSize            = 512
	mbrPartitionTable  = 0x1BE
	mbrSignatureOffset = 0x1FE
	mbrSignature       = 0xAA55
	mbrBootActive      = 0x80
)

// MBRLayout is sector 0 of the raw device.
var MBRLayout = Layout{
	Name:          "mbr",
	Size:          mbrSize,
	BootOffset:    mbrPartitionTable,
	BootValue:     mbrBootActive,
	RewriteOffset: -1,
	Check:         checkMBR,
}

func checkMBR(buf []byte) error {
	if sig := binary.LittleEndian.Uint16(buf[mbrSignatureOffset:]); sig != mbrSignature {
		return fmt.Errorf("%w: found %#04x", ErrNoSignature, sig)
	}
	return nil
}

// bootable reports whether the first entry's boot indicator is set.
func (l Layout) bootable(buf []byte) bool {
	return buf[l.BootOffset] != 0
}

// markBootable sets the boot indicator and, if the format has one, the
// rewrite flag.
func (l Layout) markBootable(buf []byte) {
	buf[l.BootOffset] = l.BootValue
	if l.RewriteOffset >= 0 {
		buf[l.RewriteOffset] = 1
	}
}
