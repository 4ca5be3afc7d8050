// Package device resolves drive specifiers and opens raw block devices.
package device

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDrive is returned for a specifier that is not a drive letter.
var ErrInvalidDrive = errors.New("invalid drive specifier")

// Letter reduces a Windows drive specifier ("e", "E:", `E:\`) to its
// upper-case two-character form ("E:").
func Letter(spec string) (string, error) {
	s := strings.TrimSpace(spec)
	s = strings.TrimRight(s, `\/`)
	if len(s) == 1 {
		s += ":"
	}
	if len(s) != 2 || s[1] != ':' {
		return "", fmt.Errorf("%w: %q", ErrInvalidDrive, spec)
	}

	c := s[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	if c < 'A' || c > 'Z' {
		return "", fmt.Errorf("%w: %q", ErrInvalidDrive, spec)
	}
	return string(c) + ":", nil
}

// VolumePath returns the device-namespace path for a drive letter:
// `E:\` becomes `\\.\E:`.
func VolumePath(spec string) (string, error) {
	letter, err := Letter(spec)
	if err != nil {
		return "", err
	}
	return `\\.\` + letter, nil
}
