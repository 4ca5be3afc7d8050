//go:build !windows

package osversion

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Detect returns the running kernel release.
func Detect() (Version, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return Version{}, fmt.Errorf("uname: %w", err)
	}
	return ParseRelease(runtime.GOOS, unix.ByteSliceToString(uts.Release[:]))
}
