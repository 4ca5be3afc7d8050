//go:build !windows

package device

import (
	"fmt"
	"os"
	"strings"
)

// Path maps a drive specifier to the path Open will use. Outside Windows
// the specifier is already a device path such as /dev/sdb.
func Path(spec string) (string, error) {
	s := strings.TrimSpace(spec)
	if !strings.HasPrefix(s, "/") {
		return "", fmt.Errorf("%w: %q (want a device path such as /dev/sdb)", ErrInvalidDrive, spec)
	}
	return s, nil
}

// Open opens a block device read/write.
func Open(spec string) (*os.File, error) {
	path, err := Path(spec)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
