//go:build !windows
// +build !windows

package service

import (
	"golang.org/x/sys/unix"
)

// DetectKind returns the host kind from the kernel name.
func DetectKind() (Kind, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return 0, err
	}

	return kindFromSysname(unix.ByteSliceToString(uts.Sysname[:]))
}
