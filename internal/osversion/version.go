// Package osversion reports the version of the host operating system.
package osversion

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnparsable is returned when a release string has no leading version
// number.
var ErrUnparsable = errors.New("unparsable OS release")

// Windows is the Platform value reported on Windows hosts.
const Windows = "windows"

// legacyMajor is the first Windows major version (Vista) that formats
// removable drives as NTFS directly.
const legacyMajor = 6

// Version identifies a host OS release.
type Version struct {
	Platform string
	Major    int
	Minor    int
	Build    int
}

// Legacy reports whether the host is a pre-Vista Windows release.
func (v Version) Legacy() bool {
	return v.Platform == Windows && v.Major < legacyMajor
}

// String returns the version as "platform major.minor.build".
func (v Version) String() string {
	return fmt.Sprintf("%s %d.%d.%d", v.Platform, v.Major, v.Minor, v.Build)
}

// Override returns a Windows version with the given major number, for
// dry runs that need a specific format strategy.
func Override(major int) Version {
	return Version{Platform: Windows, Major: major}
}

// ParseRelease parses a dotted release string such as "6.1.7601" or
// "6.8.0-45-generic". Missing components are zero; trailing non-numeric
// text is ignored.
func ParseRelease(platform, release string) (Version, error) {
	v := Version{Platform: platform}
	parts := strings.SplitN(strings.TrimSpace(release), ".", 3)

	fields := []*int{&v.Major, &v.Minor, &v.Build}
	for i, p := range parts {
		n, used := leadingInt(p)
		if used == 0 {
			if i == 0 {
				return Version{}, fmt.Errorf("%w: %q", ErrUnparsable, release)
			}
			break
		}
		*fields[i] = n
		if used < len(p) {
			// "0-45-generic": stop at the first non-numeric suffix.
			break
		}
	}
	return v, nil
}

// leadingInt parses the decimal digits at the start of s and reports how
// many bytes it consumed.
func leadingInt(s string) (int, int) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, 0
	}
	return n, end
}
