//go:build windows

package device

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// Path maps a drive specifier to the path Open will use.
func Path(spec string) (string, error) {
	return VolumePath(spec)
}

// Open opens the volume behind a drive letter for raw read, write, and
// ioctl access. The returned file's Fd is the Windows handle.
func Open(spec string) (*os.File, error) {
	path, err := Path(spec)
	if err != nil {
		return nil, err
	}

	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	h, err := windows.CreateFile(
		p,
		windows.GENERIC_EXECUTE|windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return os.NewFile(uintptr(h), path), nil
}
