package cliutil

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ExitStderrUnusable is the exit code used when the supervisor has nowhere to
// report problems and refuses to start jobs.
const ExitStderrUnusable = 125

// CheckStderr reports an error if fd is not an open descriptor.
func CheckStderr(fd int) error {
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
		return fmt.Errorf("stderr unusable: %w", err)
	}
	return nil
}
