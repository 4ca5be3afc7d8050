//go:build windows

package osversion

import "golang.org/x/sys/windows"

// Detect returns the running Windows version. RtlGetVersion reports the
// real version regardless of the executable's compatibility manifest.
func Detect() (Version, error) {
	info := windows.RtlGetVersion()
	return Version{
		Platform: Windows,
		Major:    int(info.MajorVersion),
		Minor:    int(info.MinorVersion),
		Build:    int(info.BuildNumber),
	}, nil
}
