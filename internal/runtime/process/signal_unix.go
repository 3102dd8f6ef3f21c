//go:build !windows

package process

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrGone reports that a process group no longer has any members.
var ErrGone = errors.New("process group gone")

// SignalGroup delivers sig to every member of the process group led by pgid.
func SignalGroup(pgid int, sig syscall.Signal) error {
	if pgid <= 0 {
		// kill(0) and kill(-1) would hit the supervisor itself.
		return fmt.Errorf("invalid process group %d", pgid)
	}
	if err := unix.Kill(-pgid, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return ErrGone
		}
		return fmt.Errorf("signal process group %d: %w", pgid, err)
	}
	return nil
}
