package engine

import (
	"time"

	"golang.org/x/sys/unix"
)

// Kernel is the narrow set of process-control calls the supervisor makes. The
// production implementation talks to the operating system; tests substitute a
// scripted one.
type Kernel interface {
	// Wait collects the status of any terminated child without blocking. It
	// returns 0 when children exist but none has changed state.
	Wait(status *unix.WaitStatus) (int, error)

	// SignalGroup delivers sig to the process group pgid. A group that no
	// longer exists is reported with process.ErrGone.
	SignalGroup(pgid int, sig unix.Signal) error

	// SetAlarm arms the real-time interval timer to deliver SIGALRM once
	// after d. A zero duration disarms it.
	SetAlarm(d time.Duration) error

	// AlarmExpired reports whether the real-time timer has run out.
	AlarmExpired() (bool, error)
}
