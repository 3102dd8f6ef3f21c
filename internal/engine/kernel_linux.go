//go:build linux

package engine

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Paintersrp/subreap/internal/runtime/process"
)

type unixKernel struct{}

// NewKernel returns the Kernel backed by the running operating system.
func NewKernel() (Kernel, error) {
	return unixKernel{}, nil
}

func (unixKernel) Wait(status *unix.WaitStatus) (int, error) {
	return unix.Wait4(-1, status, unix.WNOHANG, nil)
}

func (unixKernel) SignalGroup(pgid int, sig unix.Signal) error {
	return process.SignalGroup(pgid, sig)
}

func (unixKernel) SetAlarm(d time.Duration) error {
	var it unix.Itimerval
	if d > 0 {
		// A zero it_value disarms the timer, so sub-microsecond delays are
		// rounded up to the timer's resolution.
		it.Value = unix.NsecToTimeval(max(d, time.Microsecond).Nanoseconds())
	}
	if _, err := unix.Setitimer(unix.ItimerReal, it); err != nil {
		return fmt.Errorf("set alarm: %w", err)
	}
	return nil
}

func (unixKernel) AlarmExpired() (bool, error) {
	it, err := unix.Getitimer(unix.ItimerReal)
	if err != nil {
		return false, fmt.Errorf("get alarm: %w", err)
	}
	return it.Value.Sec == 0 && it.Value.Usec == 0, nil
}

// becomeSubreaper makes orphaned descendants re-parent to this process. PID 1
// already has that role.
func becomeSubreaper() error {
	if os.Getpid() == 1 {
		return nil
	}
	if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("become subreaper: %w", err)
	}
	return nil
}
